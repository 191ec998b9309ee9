//go:build postgres || all_adapters

package all

import _ "github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource/postgres" // Register postgres adapter
