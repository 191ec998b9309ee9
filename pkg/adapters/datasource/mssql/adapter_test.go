package mssql

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

func TestFromMap(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		wantAuth string
		wantErr  string
	}{
		{
			name:     "sql auth detected from user",
			config:   map[string]any{"host": "db", "database": "commerce", "user": "reader", "password": "pw"},
			wantAuth: "sql",
		},
		{
			name: "service principal detected from client_id",
			config: map[string]any{
				"host": "db", "database": "commerce",
				"client_id": "app", "tenant_id": "tenant", "client_secret": "s3cret",
			},
			wantAuth: "service_principal",
		},
		{
			name:    "service principal missing secret",
			config:  map[string]any{"host": "db", "database": "commerce", "client_id": "app", "tenant_id": "tenant"},
			wantErr: "client_secret is required",
		},
		{
			name:    "no credentials",
			config:  map[string]any{"host": "db", "database": "commerce"},
			wantErr: "could not auto-detect auth method",
		},
		{
			name:    "unknown auth method",
			config:  map[string]any{"host": "db", "database": "commerce", "auth_method": "kerberos"},
			wantErr: "invalid auth method",
		},
		{
			name:    "missing host",
			config:  map[string]any{"database": "commerce", "user": "reader"},
			wantErr: "host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromMap(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAuth, cfg.AuthMethod)
			assert.Equal(t, DefaultPort(), cfg.Port)
			assert.True(t, cfg.Encrypt)
		})
	}
}

func TestBuildConnectionString_SQLAuth(t *testing.T) {
	driver, connStr := buildConnectionString(&Config{
		Host:       "db.internal",
		Port:       1433,
		Database:   "commerce",
		AuthMethod: "sql",
		Username:   "reader",
		Password:   "p@ss;word",
		Encrypt:    true,
	})

	assert.Equal(t, "sqlserver", driver)
	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:1433", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss;word", pw)
	assert.Equal(t, "commerce", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
}

func TestBuildConnectionString_ServicePrincipal(t *testing.T) {
	driver, connStr := buildConnectionString(&Config{
		Host:         "x.database.windows.net",
		Port:         1433,
		Database:     "commerce",
		AuthMethod:   "service_principal",
		TenantID:     "tenant",
		ClientID:     "app",
		ClientSecret: "secret",
	})

	assert.Equal(t, "azuresql", driver)
	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Nil(t, u.User)
	assert.Equal(t, "ActiveDirectoryServicePrincipal", u.Query().Get("fedauth"))
	assert.Equal(t, "app@tenant", u.Query().Get("user id"))
}

func TestQuoteName(t *testing.T) {
	assert.Equal(t, "[dbo].[orders]", buildFullyQualifiedName("", "orders"))
	assert.Equal(t, "[sales].[we]]ird]", buildFullyQualifiedName("sales", "we]ird"))
}

func TestConvertValue_UniqueIdentifier(t *testing.T) {
	raw := []byte{0x67, 0x45, 0x23, 0x01, 0xab, 0x89, 0xef, 0xcd, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	got := convertValue(datasource.ColumnInfo{Name: "id", Type: "UNIQUEIDENTIFIER"}, raw)
	assert.Equal(t, "01234567-89AB-CDEF-0123-456789ABCDEF", got)

	text := []byte("plain")
	assert.Equal(t, text, convertValue(datasource.ColumnInfo{Type: "VARCHAR"}, text))
}

// Requires a reachable server: MSSQL_HOST, MSSQL_USER, MSSQL_PASSWORD, MSSQL_DATABASE.
func TestAdapter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	host := os.Getenv("MSSQL_HOST")
	user := os.Getenv("MSSQL_USER")
	password := os.Getenv("MSSQL_PASSWORD")
	database := os.Getenv("MSSQL_DATABASE")
	if host == "" || user == "" || password == "" || database == "" {
		t.Skip("skipping integration test: MSSQL_HOST, MSSQL_USER, MSSQL_PASSWORD, or MSSQL_DATABASE not set")
	}

	port := DefaultPort()
	if p := os.Getenv("MSSQL_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, &Config{
		Host:                   host,
		Port:                   port,
		Database:               database,
		AuthMethod:             "sql",
		Username:               user,
		Password:               password,
		TrustServerCertificate: true,
		MaxConcurrent:          2,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer adapter.Close()

	require.NoError(t, adapter.TestConnection(ctx))

	result, err := adapter.Query(ctx, "SELECT name FROM sys.databases", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.True(t, result.HasMore)
}
