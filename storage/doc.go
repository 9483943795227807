// Package storage provides concrete Storage backends: a concurrency-safe
// in-memory map for tests and demos, and a SQLite backend under
// storage/sqlitestore for single-node persistence.
package storage
