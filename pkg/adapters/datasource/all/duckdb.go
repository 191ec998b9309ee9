//go:build duckdb || all_adapters

package all

import _ "github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource/duckdb" // Register duckdb adapter
