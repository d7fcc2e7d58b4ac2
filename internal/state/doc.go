// Package state enumerates the legal status transitions for URL records,
// performs transitions transactionally against the records store, and
// provides the pure guard predicates that gate user and system actions.
package state
