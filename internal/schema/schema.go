package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnSpec describes a single column of a cataloged table.
// Immutable once parsed.
type ColumnSpec struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key"`
	ForeignKey bool   `json:"foreign_key"`
	References string `json:"references,omitempty"` // "table(column)" when ForeignKey is set
}

// TableSpec describes a table and its columns in declaration order.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// DatabaseSchema is the parsed schema of one physical database.
type DatabaseSchema struct {
	Name   string      `json:"name"`
	Path   string      `json:"path"`
	Tables []TableSpec `json:"tables"`
}

// TableNames returns the table names in declaration order
func (s *DatabaseSchema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}

	return names
}

// HasTable reports whether the schema contains the named table (case-insensitive)
func (s *DatabaseSchema) HasTable(name string) bool {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}

	return false
}

// EmbeddingText renders the schema as the deterministic description string used
// for similarity matching: the schema name, its table names, and per-table
// column names.
func (s *DatabaseSchema) EmbeddingText() string {
	parts := []string{
		"Database: " + s.Name,
		"Tables: " + strings.Join(s.TableNames(), ", "),
	}

	for _, table := range s.Tables {
		cols := make([]string, 0, len(table.Columns))
		for _, c := range table.Columns {
			cols = append(cols, c.Name)
		}

		parts = append(parts, fmt.Sprintf("%s columns: %s", table.Name, strings.Join(cols, ", ")))
	}

	return strings.Join(parts, " | ")
}

// CreateSQL renders the schema as CREATE TABLE statements with column-level
// definitions, the form handed to the generative model.
func (s *DatabaseSchema) CreateSQL() string {
	var sb strings.Builder

	for _, table := range s.Tables {
		sb.WriteString("CREATE TABLE " + table.Name + " (\n")

		cols := make([]string, 0, len(table.Columns))

		for _, col := range table.Columns {
			def := "    " + col.Name + " " + col.Type
			if col.PrimaryKey {
				def += " PRIMARY KEY"
			}

			if col.ForeignKey && col.References != "" {
				def += " REFERENCES " + col.References
			}

			cols = append(cols, def)
		}

		sb.WriteString(strings.Join(cols, ",\n"))
		sb.WriteString("\n);\n\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Validate checks the catalog invariants: unique table names within the
// schema and unique column names within each table.
func (s *DatabaseSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema has no name")
	}

	seenTables := make(map[string]bool, len(s.Tables))

	for _, table := range s.Tables {
		lower := strings.ToLower(table.Name)
		if seenTables[lower] {
			return fmt.Errorf("schema %q: duplicate table %q", s.Name, table.Name)
		}

		seenTables[lower] = true

		seenCols := make(map[string]bool, len(table.Columns))
		for _, col := range table.Columns {
			colLower := strings.ToLower(col.Name)
			if seenCols[colLower] {
				return fmt.Errorf(
					"schema %q: table %q: duplicate column %q",
					s.Name, table.Name, col.Name,
				)
			}

			seenCols[colLower] = true
		}
	}

	return nil
}

// Catalog is the complete set of known database schemas, keyed by name.
// Built once at load time and read-only thereafter.
type Catalog struct {
	schemas map[string]*DatabaseSchema
}

// NewCatalog builds a catalog from the given schemas, enforcing invariants
func NewCatalog(schemas []*DatabaseSchema) (*Catalog, error) {
	byName := make(map[string]*DatabaseSchema, len(schemas))

	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}

		if _, exists := byName[s.Name]; exists {
			return nil, fmt.Errorf("duplicate schema name %q in catalog", s.Name)
		}

		byName[s.Name] = s
	}

	return &Catalog{schemas: byName}, nil
}

// Get returns the schema with the given name, or nil if unknown
func (c *Catalog) Get(name string) *DatabaseSchema {
	return c.schemas[name]
}

// Len returns the number of schemas in the catalog
func (c *Catalog) Len() int {
	return len(c.schemas)
}

// Names returns the schema names in sorted order for deterministic iteration
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// All returns the schemas in name order
func (c *Catalog) All() []*DatabaseSchema {
	all := make([]*DatabaseSchema, 0, len(c.schemas))
	for _, name := range c.Names() {
		all = append(all, c.schemas[name])
	}

	return all
}
