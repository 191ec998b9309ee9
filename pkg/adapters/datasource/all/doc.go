// Package all links the datasource adapters selected by build tags into the
// binary. SQLite is included unless built with no_sqlite; the others need
// their own tag or all_adapters.
package all
