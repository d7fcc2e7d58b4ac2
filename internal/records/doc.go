// Package records persists URL records and their append-only processing
// history in SQLite, and defines the processing status and user intent
// enumerations every other component consumes.
package records
