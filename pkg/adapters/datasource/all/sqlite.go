//go:build !no_sqlite

package all

import _ "github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource/sqlite" // Register sqlite adapter
