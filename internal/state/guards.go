package state

import (
	"citelink/internal/classify"
	"citelink/internal/records"
)

// CanProcess reports whether automated processing may start for a record:
// the user intent allows it, the status is at a processable entry point, and
// at least one automated method is viable.
func CanProcess(rec *records.Record, cap records.Capability) bool {
	if rec == nil {
		return false
	}
	if rec.Intent.BlocksProcessing() {
		return false
	}
	switch rec.Status {
	case records.StatusNotStarted, records.StatusAwaitingSelection:
	default:
		return false
	}
	return cap.SupportsAutomation()
}

// CanUnlink reports whether the record's linked external item may be detached.
func CanUnlink(rec *records.Record) bool {
	if rec == nil {
		return false
	}
	return records.IsStoredStatus(rec.Status)
}

// CanDeleteLinkedItem reports whether the external item linked to this record
// may be deleted along with an unlink. Shared and foreign items are never
// auto-deleted, nor are items the user has edited since creation.
func CanDeleteLinkedItem(rec *records.Record, linkCount int) bool {
	if rec == nil || rec.ItemKey == "" {
		return false
	}
	return rec.ItemCreatedBy && !rec.ItemModified && linkCount == 1
}

// CanReset reports whether the record may be reset to not_started.
func CanReset(rec *records.Record) bool {
	if rec == nil {
		return false
	}
	return !records.IsProcessingStatus(rec.Status)
}

// ShouldCascade reports whether a stage failure should advance the pipeline
// to the next stage rather than terminating the run.
func ShouldCascade(status records.Status, err error) bool {
	if !records.IsProcessingStatus(status) {
		return false
	}
	return !classify.IsPermanent(err)
}
