package schema

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// IntrospectDatabase reads the full schema of a single SQLite database.
// The connection is opened read-only and closed before returning.
func IntrospectDatabase(ctx context.Context, dbPath string) (*DatabaseSchema, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database not found: %s", dbPath)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tableNames, err := listTables(ctx, db)
	if err != nil {
		return nil, err
	}

	tables := make([]TableSpec, 0, len(tableNames))

	for _, tableName := range tableNames {
		columns, err := describeTable(ctx, db, tableName)
		if err != nil {
			return nil, err
		}

		tables = append(tables, TableSpec{Name: tableName, Columns: columns})
	}

	name := strings.TrimSuffix(filepath.Base(dbPath), filepath.Ext(dbPath))

	return &DatabaseSchema{
		Name:   name,
		Path:   dbPath,
		Tables: tables,
	}, nil
}

// listTables returns user table names in catalog declaration order
func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}

		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return names, nil
}

// describeTable reads column and foreign-key metadata for one table
func describeTable(ctx context.Context, db *sql.DB, tableName string) ([]ColumnSpec, error) {
	fkColumns, err := foreignKeyTargets(ctx, db, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []ColumnSpec

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    sql.NullString
			notNull    int
			defaultVal sql.NullString
			pk         int
		)

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", tableName, err)
		}

		declared := colType.String
		if declared == "" {
			declared = "TEXT"
		}

		references, isFK := fkColumns[name]

		columns = append(columns, ColumnSpec{
			Name:       name,
			Type:       declared,
			PrimaryKey: pk > 0,
			ForeignKey: isFK,
			References: references,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", tableName, err)
	}

	return columns, nil
}

// foreignKeyTargets maps local column names to their "table(column)" target
func foreignKeyTargets(ctx context.Context, db *sql.DB, tableName string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", tableName, err)
	}
	defer rows.Close()

	targets := make(map[string]string)

	for rows.Next() {
		var (
			id, seq                      int
			refTable, from               string
			to                           sql.NullString
			onUpdate, onDelete, matching string
		)

		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matching); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key of %s: %w", tableName, err)
		}

		// A NULL "to" column means the FK references the target's primary key
		target := to.String
		if target == "" {
			target = "rowid"
		}

		targets[from] = fmt.Sprintf("%s(%s)", refTable, target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys of %s: %w", tableName, err)
	}

	return targets, nil
}

// DiscoverCatalog walks the catalog root and introspects every database it
// finds. Accepts either loose *.sqlite/*.db files or one database per
// subdirectory.
func DiscoverCatalog(ctx context.Context, root string) (*Catalog, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog root: %w", err)
	}

	var paths []string

	for _, entry := range entries {
		full := filepath.Join(root, entry.Name())

		if entry.IsDir() {
			nested, err := filepath.Glob(filepath.Join(full, "*.sqlite"))
			if err == nil && len(nested) > 0 {
				paths = append(paths, nested[0])
			}

			continue
		}

		switch filepath.Ext(entry.Name()) {
		case ".sqlite", ".db":
			paths = append(paths, full)
		}
	}

	sort.Strings(paths)

	schemas := make([]*DatabaseSchema, 0, len(paths))

	for _, path := range paths {
		s, err := IntrospectDatabase(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect %s: %w", path, err)
		}

		schemas = append(schemas, s)
	}

	return NewCatalog(schemas)
}
