package sqlite

import (
	"fmt"
	"net/url"
)

// Config contains SQLite-specific connection options.
type Config struct {
	Path          string
	MaxConcurrent int // concurrent readers; SQLite serializes writers but not readers
	BusyTimeoutMs int
}

// DefaultMaxConcurrent returns the default number of concurrent readers.
func DefaultMaxConcurrent() int {
	return 4
}

// DefaultBusyTimeoutMs returns how long a reader waits on a locked database.
func DefaultBusyTimeoutMs() int {
	return 5000
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		MaxConcurrent: DefaultMaxConcurrent(),
		BusyTimeoutMs: DefaultBusyTimeoutMs(),
	}

	if path, ok := config["path"].(string); ok && path != "" {
		cfg.Path = path
	} else if database, ok := config["database"].(string); ok && database != "" {
		cfg.Path = database
	} else {
		return nil, fmt.Errorf("path is required")
	}

	if n, ok := intValue(config["max_concurrent"]); ok && n > 0 {
		cfg.MaxConcurrent = n
	}
	if n, ok := intValue(config["busy_timeout_ms"]); ok && n >= 0 {
		cfg.BusyTimeoutMs = n
	}

	return cfg, nil
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64: // JSON numbers are float64
		return int(n), true
	}
	return 0, false
}

// buildDSN opens the file read-only and turns on query_only for every
// connection, so no statement can write even if it got past validation.
func buildDSN(cfg *Config) string {
	u := url.URL{Scheme: "file", Opaque: (&url.URL{Path: cfg.Path}).EscapedPath()}
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("_query_only", "true")
	q.Set("_busy_timeout", fmt.Sprintf("%d", cfg.BusyTimeoutMs))
	u.RawQuery = q.Encode()
	return u.String()
}
