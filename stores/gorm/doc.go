// Package gorm provides GORM-backed implementations of the account store
// interfaces, suitable for Postgres, MySQL and SQLite. Run AutoMigrate at
// startup; the unique email index is part of the schema, so concurrent
// signups for the same address resolve in the database.
package gorm
