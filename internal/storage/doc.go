// Package storage persists scheduled replay tasks in a local SQLite
// database (modernc.org/sqlite, no cgo). The schema is created on Open
// and consists of the single tasks table.
package storage
