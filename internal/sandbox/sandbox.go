// Package sandbox executes validated SQL against SQLite databases under a
// read-only connection, a deadline, and a row cap.
package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/askql/askql/internal/errors"
	"github.com/askql/askql/internal/validate"
)

// Result holds the outcome of a sandboxed query execution.
type Result struct {
	Success   bool            `json:"success"`
	Columns   []string        `json:"columns,omitempty"`
	Rows      [][]interface{} `json:"rows,omitempty"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated,omitempty"`
	Duration  time.Duration   `json:"-"`
	Error     string          `json:"error,omitempty"`
}

// Sandbox runs queries against database files with enforced limits.
type Sandbox struct {
	timeout time.Duration
	maxRows int
}

func New(timeout time.Duration, maxRows int) *Sandbox {
	return &Sandbox{timeout: timeout, maxRows: maxRows}
}

// Execute re-validates the query, then runs it against the database file at
// dbPath over a read-only connection. The context deadline interrupts
// in-flight statements.
func (s *Sandbox) Execute(ctx context.Context, dbPath, query string) (*Result, error) {
	start := time.Now()

	if err := validate.Validate(query); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSafety, "query rejected by validator")
	}

	if _, err := os.Stat(dbPath); err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeNotFound, "database file %s not found", dbPath)
	}

	db, err := sql.Open("sqlite3", readOnlyDSN(dbPath))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeExecution, "failed to open database %s", dbPath)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Newf(errors.ErrTypeExecution,
				"query exceeded the %s execution limit", s.timeout)
		}

		return nil, errors.Wrap(err, errors.ErrTypeExecution, "query execution failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to read result columns")
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to read result column types")
	}

	result := &Result{
		Success: true,
		Columns: columns,
		Rows:    make([][]interface{}, 0),
	}

	for rows.Next() {
		if len(result.Rows) >= s.maxRows {
			break
		}

		values := make([]interface{}, len(columns))
		scanTargets := make([]interface{}, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to scan result row")
		}

		result.Rows = append(result.Rows, normalizeRow(values, columnTypes))
	}

	// Filling the cap exactly counts as truncation
	result.Truncated = len(result.Rows) == s.maxRows

	if err := rows.Err(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Newf(errors.ErrTypeExecution,
				"query exceeded the %s execution limit", s.timeout)
		}

		return nil, errors.Wrap(err, errors.ErrTypeExecution, "error while reading result rows")
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)

	return result, nil
}

// readOnlyDSN builds the connection string for a database file. mode=ro
// refuses writes at open time and _query_only rejects any statement that
// would mutate state on the connection itself.
func readOnlyDSN(dbPath string) string {
	return fmt.Sprintf("file:%s?mode=ro&_query_only=true", dbPath)
}

// normalizeRow converts driver values to JSON-friendly scalars. SQLite hands
// back TEXT columns as []byte, which would otherwise serialize as base64;
// declared BLOB columns keep their raw bytes.
func normalizeRow(values []interface{}, columnTypes []*sql.ColumnType) []interface{} {
	normalized := make([]interface{}, len(values))
	for i, v := range values {
		switch typed := v.(type) {
		case []byte:
			if isBlobColumn(columnTypes, i) {
				// The driver reuses its buffer between rows
				normalized[i] = append([]byte(nil), typed...)
			} else {
				normalized[i] = string(typed)
			}
		default:
			normalized[i] = typed
		}
	}

	return normalized
}

func isBlobColumn(columnTypes []*sql.ColumnType, i int) bool {
	if i >= len(columnTypes) {
		return false
	}

	return strings.Contains(strings.ToUpper(columnTypes[i].DatabaseTypeName()), "BLOB")
}
