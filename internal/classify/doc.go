// Package classify maps raw stage failures onto the error taxonomy the
// orchestrator's cascade policy depends on. Only IsPermanent and IsRetryable
// are contract; the classification heuristics may evolve independently.
package classify
