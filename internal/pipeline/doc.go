// Package pipeline drives a single URL record through the ordered processing
// stages, deciding after each failure whether to cascade to the next stage or
// terminate the run, and recording every attempt in the record's history.
package pipeline
