// Package batch runs sets of URL records through the processing pipeline
// with a bounded worker pool. Each run is tracked by an in-memory session
// that supports pause, resume, and cooperative cancel; sessions are swept
// after a retention window and never persisted.
package batch
