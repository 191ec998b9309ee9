//go:build mssql || all_adapters

package all

import _ "github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource/mssql" // Register sqlserver adapter
