package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Catalog   CatalogConfig   `json:"catalog"   envPrefix:"ASKQL_"`
	Retrieval RetrievalConfig `json:"retrieval" envPrefix:"ASKQL_"`
	LLM       LLMConfig       `json:"llm"       envPrefix:"ASKQL_"`
	Sandbox   SandboxConfig   `json:"sandbox"   envPrefix:"ASKQL_"`
	Server    ServerConfig    `json:"server"    envPrefix:"ASKQL_"`
	Logging   LoggingConfig   `json:"logging"   envPrefix:"ASKQL_"`
}

// CatalogConfig locates the physical databases and the schema cache
type CatalogConfig struct {
	Root      string `json:"root"       env:"CATALOG_ROOT"       envDefault:"~/.local/share/askql/databases"`
	CacheFile string `json:"cache_file" env:"SCHEMA_CACHE_FILE"  envDefault:"~/.cache/askql/schemas.json"`
}

// RetrievalConfig controls semantic candidate retrieval
type RetrievalConfig struct {
	TopK           int    `json:"top_k"           env:"RETRIEVAL_TOP_K"      envDefault:"5"`
	EmbeddingURL   string `json:"embedding_url"   env:"EMBEDDING_URL"        envDefault:"http://localhost:11434"`
	EmbeddingModel string `json:"embedding_model" env:"EMBEDDING_MODEL"      envDefault:"multilingual-e5-large"`
	Dimensions     int    `json:"dimensions"      env:"EMBEDDING_DIMENSIONS" envDefault:"1024"`
}

// LLMConfig configures the generative text provider
type LLMConfig struct {
	Provider    string  `json:"provider"    env:"LLM_PROVIDER"    envDefault:"ollama"`
	Model       string  `json:"model"       env:"LLM_MODEL"       envDefault:"gemma3:27b"`
	APIKey      string  `json:"api_key"     env:"LLM_API_KEY"`
	BaseURL     string  `json:"base_url"    env:"LLM_BASE_URL"`
	Temperature float64 `json:"temperature" env:"LLM_TEMPERATURE" envDefault:"0"`
	Timeout     string  `json:"timeout"     env:"LLM_TIMEOUT"     envDefault:"60s"`
}

// SandboxConfig bounds query execution
type SandboxConfig struct {
	QueryTimeout string `json:"query_timeout" env:"QUERY_TIMEOUT" envDefault:"5s"`
	MaxRows      int    `json:"max_rows"      env:"MAX_ROWS"      envDefault:"1000"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr string `json:"addr" env:"HTTP_ADDR" envDefault:":8080"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"  env:"LOG_LEVEL"  envDefault:"info"`   // debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"text"`   // text, json
	Output string `json:"output" env:"LOG_OUTPUT" envDefault:"stderr"` // stdout, stderr, file
	File   string `json:"file"   env:"LOG_FILE"   envDefault:"~/.local/share/askql/logs/askql.log"`
}

// LoadConfig loads configuration from .env, config file, and environment variables
func LoadConfig() (*Config, error) {
	// Load .env if present; missing file is not an error
	_ = godotenv.Load()

	config := &Config{}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Environment variables override the file and supply defaults
	if err := env.ParseWithOptions(config, env.Options{
		Prefix: "ASKQL_",
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// mergeConfigs merges source configuration into target configuration
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := 0; i < s.NumField(); i++ {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	if _, err := time.ParseDuration(config.Sandbox.QueryTimeout); err != nil {
		return fmt.Errorf("invalid query timeout: %s", config.Sandbox.QueryTimeout)
	}

	if _, err := time.ParseDuration(config.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid LLM timeout: %s", config.LLM.Timeout)
	}

	if config.Sandbox.MaxRows <= 0 {
		return fmt.Errorf("max rows must be positive: %d", config.Sandbox.MaxRows)
	}

	if config.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top-k must be positive: %d", config.Retrieval.TopK)
	}

	if config.Retrieval.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive: %d", config.Retrieval.Dimensions)
	}

	return nil
}

// QueryTimeout returns the parsed sandbox query timeout
func (c *Config) QueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Sandbox.QueryTimeout)
	if err != nil {
		return 5 * time.Second
	}

	return d
}

// LLMTimeout returns the parsed generative call timeout
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}

	return d
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv("ASKQL_CONFIG"); configPath != "" {
		return ExpandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "askql", "config.json")
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Catalog.Root = ExpandPath(c.Catalog.Root)
	c.Catalog.CacheFile = ExpandPath(c.Catalog.CacheFile)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Catalog.CacheFile),
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
