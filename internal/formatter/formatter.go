// Package formatter renders pipeline responses and catalog listings for the
// command line.
package formatter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/askql/askql/internal/pipeline"
	"github.com/askql/askql/internal/schema"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

// Formatter handles answer output formatting
type Formatter struct{}

// NewFormatter creates a new formatter instance
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatResponse renders a pipeline response in the requested format.
func (f *Formatter) FormatResponse(resp *pipeline.Response, format OutputFormat) string {
	if format == FormatJSON {
		encoded, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Sprintf("failed to encode response: %v", err)
		}

		return string(encoded)
	}

	if !resp.Success {
		return f.formatFailure(resp)
	}

	return f.formatSuccess(resp)
}

func (f *Formatter) formatSuccess(resp *pipeline.Response) string {
	var lines []string

	lines = append(lines, "Database: "+resp.Database)
	lines = append(lines, "SQL: "+resp.SQL)

	if resp.Explanation != "" {
		lines = append(lines, "Answer: "+resp.Explanation)
	}

	lines = append(lines, "")
	lines = append(lines, f.renderTable(resp.Columns, resp.Rows))

	summary := fmt.Sprintf("%d row(s)", resp.RowCount)
	if resp.Truncated {
		summary += " (truncated at the row cap, more rows may match)"
	}

	lines = append(lines, summary)
	lines = append(lines, fmt.Sprintf("Confidence: %.0f/100  Time: %dms",
		resp.Confidence, resp.Timings.TotalMS))

	return strings.Join(lines, "\n")
}

func (f *Formatter) formatFailure(resp *pipeline.Response) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("No answer (%s)", resp.Outcome))

	if resp.Message != "" {
		lines = append(lines, resp.Message)
	}

	if resp.SQL != "" {
		lines = append(lines, "Attempted SQL: "+resp.SQL)
	}

	lines = append(lines, fmt.Sprintf("Confidence: %.0f/100", resp.Confidence))

	return strings.Join(lines, "\n")
}

// renderTable draws a fixed-width ASCII table of the result rows.
func (f *Formatter) renderTable(columns []string, rows [][]interface{}) string {
	if len(columns) == 0 {
		return "(no columns)"
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}

	rendered := make([][]string, len(rows))

	for i, row := range rows {
		cells := make([]string, len(columns))

		for j := range columns {
			var cell string
			if j < len(row) {
				cell = f.renderScalar(row[j])
			}

			cells[j] = cell

			if len(cell) > widths[j] {
				widths[j] = len(cell)
			}
		}

		rendered[i] = cells
	}

	var sb strings.Builder

	writeRow := func(cells []string) {
		for j, cell := range cells {
			if j > 0 {
				sb.WriteString("  ")
			}

			sb.WriteString(cell)
			sb.WriteString(strings.Repeat(" ", widths[j]-len(cell)))
		}

		sb.WriteString("\n")
	}

	writeRow(columns)

	separators := make([]string, len(columns))
	for j := range columns {
		separators[j] = strings.Repeat("-", widths[j])
	}

	writeRow(separators)

	for _, cells := range rendered {
		writeRow(cells)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// renderScalar converts a result value to display text.
func (f *Formatter) renderScalar(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatCatalog renders a one-line-per-database catalog listing.
func (f *Formatter) FormatCatalog(catalog *schema.Catalog) string {
	var lines []string

	for _, dbSchema := range catalog.All() {
		tables := dbSchema.TableNames()
		lines = append(lines, fmt.Sprintf("%s  (%d tables: %s)",
			dbSchema.Name, len(tables), strings.Join(tables, ", ")))
	}

	if len(lines) == 0 {
		return "(catalog is empty)"
	}

	return strings.Join(lines, "\n")
}

// FormatSchema renders one database schema as CREATE TABLE definitions.
func (f *Formatter) FormatSchema(dbSchema *schema.DatabaseSchema) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "-- Database: %s\n", dbSchema.Name)

	if dbSchema.Path != "" {
		fmt.Fprintf(&sb, "-- Path: %s\n", dbSchema.Path)
	}

	sb.WriteString(dbSchema.CreateSQL())

	return strings.TrimRight(sb.String(), "\n")
}
