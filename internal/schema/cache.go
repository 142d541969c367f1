package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const cacheFilePerm = 0644

// SaveCatalog serializes every schema in the catalog to a JSON file keyed by
// database name. The round-trip preserves every ColumnSpec field.
func SaveCatalog(catalog *Catalog, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	byName := make(map[string]*DatabaseSchema, catalog.Len())
	for _, s := range catalog.All() {
		byName[s.Name] = s
	}

	data, err := json.MarshalIndent(byName, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.WriteFile(path, data, cacheFilePerm); err != nil {
		return fmt.Errorf("failed to write catalog cache: %w", err)
	}

	return nil
}

// LoadCatalog reads a previously serialized catalog. Returns os.ErrNotExist
// when no cache file is present.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var byName map[string]*DatabaseSchema
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, fmt.Errorf("failed to parse catalog cache: %w", err)
	}

	schemas := make([]*DatabaseSchema, 0, len(byName))
	for _, s := range byName {
		schemas = append(schemas, s)
	}

	return NewCatalog(schemas)
}
