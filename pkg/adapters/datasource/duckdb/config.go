package duckdb

import (
	"fmt"
	"net/url"
)

// Config contains DuckDB-specific connection options.
type Config struct {
	Path    string
	Threads int // 0 leaves DuckDB's default
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}

	if path, ok := config["path"].(string); ok && path != "" {
		cfg.Path = path
	} else if database, ok := config["database"].(string); ok && database != "" {
		cfg.Path = database
	} else {
		return nil, fmt.Errorf("path is required")
	}

	switch n := config["threads"].(type) {
	case int:
		cfg.Threads = n
	case float64: // JSON numbers are float64
		cfg.Threads = int(n)
	}

	return cfg, nil
}

// buildDSN opens the database file READ_ONLY with external access disabled,
// which also turns off the file-reading table functions at the engine level.
func buildDSN(cfg *Config) string {
	q := url.Values{}
	q.Set("access_mode", "READ_ONLY")
	q.Set("enable_external_access", "false")
	if cfg.Threads > 0 {
		q.Set("threads", fmt.Sprintf("%d", cfg.Threads))
	}
	return cfg.Path + "?" + q.Encode()
}
