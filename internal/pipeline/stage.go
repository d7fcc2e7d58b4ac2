package pipeline

import (
	"context"

	"citelink/internal/records"
)

// Disposition describes how a successful stage resolves a record.
type Disposition int

const (
	// DispositionStored means a complete citation was stored.
	DispositionStored Disposition = iota
	// DispositionStoredIncomplete means a citation was stored but is missing fields.
	DispositionStoredIncomplete
	// DispositionAwaitingSelection means candidate identifiers need a user choice.
	DispositionAwaitingSelection
	// DispositionAwaitingMetadata means extracted metadata needs user approval.
	DispositionAwaitingMetadata
)

func (d Disposition) status() records.Status {
	switch d {
	case DispositionStored:
		return records.StatusStored
	case DispositionStoredIncomplete:
		return records.StatusStoredIncomplete
	case DispositionAwaitingSelection:
		return records.StatusAwaitingSelection
	case DispositionAwaitingMetadata:
		return records.StatusAwaitingMetadata
	default:
		return records.StatusExhausted
	}
}

// Result is the explicit outcome of a successful stage run.
type Result struct {
	Disposition Disposition
	// Method names the resolution path taken (e.g. "doi", "url", "llm").
	Method string
	// ItemKey is the external item created or matched, when any.
	ItemKey string
	// Metadata is free-form detail recorded into the attempt history.
	Metadata map[string]string
}

// Stage is the contract the orchestrator needs from each pipeline step.
// A Stage reports failure by returning an error; the orchestrator classifies
// it and decides whether to cascade or terminate.
type Stage interface {
	Name() string
	ProcessingStatus() records.Status
	Supports(records.Capability) bool
	Run(ctx context.Context, rec *records.Record) (Result, error)
}
