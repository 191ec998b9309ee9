package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for fixture databases

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// CommerceDDL creates the sample commerce schema. The statements use types
// that SQLite, PostgreSQL and DuckDB all accept.
var CommerceDDL = []string{
	`CREATE TABLE customers (
		customer_id INTEGER PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		phone TEXT,
		city TEXT NOT NULL,
		state TEXT NOT NULL,
		country TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE products (
		product_id INTEGER PRIMARY KEY,
		product_name TEXT NOT NULL,
		category TEXT NOT NULL,
		price DECIMAL(10, 2) NOT NULL,
		stock_quantity INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE orders (
		order_id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers (customer_id),
		order_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		total_amount DECIMAL(10, 2) NOT NULL,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE order_items (
		order_item_id INTEGER PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders (order_id),
		product_id INTEGER NOT NULL REFERENCES products (product_id),
		quantity INTEGER NOT NULL,
		unit_price DECIMAL(10, 2) NOT NULL
	)`,
}

// CommerceSeed inserts a small, fixed data set.
var CommerceSeed = []string{
	`INSERT INTO customers (customer_id, first_name, last_name, email, phone, city, state, country, created_at) VALUES
		(1, 'John', 'Smith', 'john.smith@email.com', '555-0101', 'New York', 'NY', 'USA', '2024-01-05 10:00:00'),
		(2, 'Emma', 'Johnson', 'emma.j@email.com', '555-0102', 'Los Angeles', 'CA', 'USA', '2024-01-12 11:30:00'),
		(3, 'Michael', 'Brown', 'mbrown@email.com', NULL, 'Chicago', 'IL', 'USA', '2024-02-03 09:15:00'),
		(4, 'Sophie', 'Martin', 'sophie.m@email.com', '555-0104', 'Toronto', 'ON', 'Canada', '2024-02-20 14:45:00'),
		(5, 'Liam', 'O''Brien', 'liam.ob@email.com', '555-0105', 'Boston', 'MA', 'USA', '2024-03-01 16:20:00')`,
	`INSERT INTO products (product_id, product_name, category, price, stock_quantity, created_at) VALUES
		(1, 'Laptop Pro', 'Electronics', 1299.99, 50, '2024-01-01 00:00:00'),
		(2, 'Wireless Mouse', 'Electronics', 29.99, 200, '2024-01-01 00:00:00'),
		(3, 'Office Chair', 'Furniture', 249.50, 30, '2024-01-01 00:00:00'),
		(4, 'Coffee Maker', 'Appliances', 89.00, 75, '2024-01-01 00:00:00')`,
	`INSERT INTO orders (order_id, customer_id, order_date, total_amount, status) VALUES
		(1, 1, '2024-03-01 12:00:00', 1329.98, 'delivered'),
		(2, 2, '2024-03-04 15:30:00', 249.50, 'shipped'),
		(3, 1, '2024-03-10 09:00:00', 89.00, 'delivered'),
		(4, 3, '2024-03-15 18:45:00', 59.98, 'pending'),
		(5, 4, '2024-04-02 10:10:00', 1299.99, 'cancelled'),
		(6, 5, '2024-04-08 13:25:00', 338.50, 'shipped')`,
	`INSERT INTO order_items (order_item_id, order_id, product_id, quantity, unit_price) VALUES
		(1, 1, 1, 1, 1299.99),
		(2, 1, 2, 1, 29.99),
		(3, 2, 3, 1, 249.50),
		(4, 3, 4, 1, 89.00),
		(5, 4, 2, 2, 29.99),
		(6, 5, 1, 1, 1299.99),
		(7, 6, 3, 1, 249.50),
		(8, 6, 4, 1, 89.00)`,
}

// CommerceCustomerCount is the number of rows in customers after seeding.
const CommerceCustomerCount = 5

// CommerceOrderCount is the number of rows in orders after seeding.
const CommerceOrderCount = 6

// NewCommerceSQLite creates a seeded SQLite database in a temp directory and
// returns its path. The file is removed when the test ends.
func NewCommerceSQLite(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "commerce.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open sqlite fixture: %v", err)
	}
	defer db.Close()

	if err := SeedCommerce(context.Background(), db); err != nil {
		t.Fatalf("failed to seed sqlite fixture: %v", err)
	}
	return path
}

// SeedCommerce runs the commerce DDL and seed statements against db.
func SeedCommerce(ctx context.Context, db *sql.DB) error {
	for _, stmt := range append(append([]string{}, CommerceDDL...), CommerceSeed...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed statement failed: %w", err)
		}
	}
	return nil
}

// CommerceSchema returns the schema description the introspector produces for
// the commerce fixture, without sample rows.
func CommerceSchema() *models.SchemaDescription {
	return &models.SchemaDescription{
		Dialect: "sqlite",
		Tables: []models.TableInfo{
			{
				Name: "customers",
				Columns: []models.ColumnInfo{
					{Name: "customer_id", Type: "INTEGER", PrimaryKey: true},
					{Name: "first_name", Type: "TEXT"},
					{Name: "last_name", Type: "TEXT"},
					{Name: "email", Type: "TEXT"},
					{Name: "phone", Type: "TEXT", Nullable: true},
					{Name: "city", Type: "TEXT"},
					{Name: "state", Type: "TEXT"},
					{Name: "country", Type: "TEXT"},
					{Name: "created_at", Type: "TIMESTAMP", Nullable: true},
				},
			},
			{
				Name: "products",
				Columns: []models.ColumnInfo{
					{Name: "product_id", Type: "INTEGER", PrimaryKey: true},
					{Name: "product_name", Type: "TEXT"},
					{Name: "category", Type: "TEXT"},
					{Name: "price", Type: "DECIMAL(10, 2)"},
					{Name: "stock_quantity", Type: "INTEGER"},
					{Name: "created_at", Type: "TIMESTAMP", Nullable: true},
				},
			},
			{
				Name: "orders",
				Columns: []models.ColumnInfo{
					{Name: "order_id", Type: "INTEGER", PrimaryKey: true},
					{Name: "customer_id", Type: "INTEGER"},
					{Name: "order_date", Type: "TIMESTAMP", Nullable: true},
					{Name: "total_amount", Type: "DECIMAL(10, 2)"},
					{Name: "status", Type: "TEXT"},
				},
			},
			{
				Name: "order_items",
				Columns: []models.ColumnInfo{
					{Name: "order_item_id", Type: "INTEGER", PrimaryKey: true},
					{Name: "order_id", Type: "INTEGER"},
					{Name: "product_id", Type: "INTEGER"},
					{Name: "quantity", Type: "INTEGER"},
					{Name: "unit_price", Type: "DECIMAL(10, 2)"},
				},
			},
		},
	}
}
