// Package repository provides the data access layer for the GraphRAG portal.
package repository

import "errors"

// Store driver names accepted by the factory in package main.
// The actual constructors live in the backend packages (jsonfile, sqlite)
// to keep this package free of driver imports.
const (
	// DriverJSONFile selects the file-backed JSON credential store.
	DriverJSONFile = "jsonfile"

	// DriverSQLite selects the embedded SQLite credential store.
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver indicates an unsupported store driver was configured.
var ErrUnknownDriver = errors.New("unknown store driver")
