package state_test

import (
	"errors"
	"testing"

	"citelink/internal/classify"
	"citelink/internal/records"
	"citelink/internal/state"
)

func TestCanProcess(t *testing.T) {
	cap := records.Capability{HasDirectLookup: true, Reachable: true}

	cases := []struct {
		name string
		rec  *records.Record
		cap  records.Capability
		want bool
	}{
		{"nil record", nil, cap, false},
		{"fresh auto", &records.Record{Status: records.StatusNotStarted, Intent: records.IntentAuto}, cap, true},
		{"priority", &records.Record{Status: records.StatusNotStarted, Intent: records.IntentPriority}, cap, true},
		{"awaiting selection", &records.Record{Status: records.StatusAwaitingSelection, Intent: records.IntentAuto}, cap, true},
		{"ignored intent", &records.Record{Status: records.StatusNotStarted, Intent: records.IntentIgnore}, cap, false},
		{"manual only", &records.Record{Status: records.StatusNotStarted, Intent: records.IntentManualOnly}, cap, false},
		{"archive intent", &records.Record{Status: records.StatusNotStarted, Intent: records.IntentArchive}, cap, false},
		{"already stored", &records.Record{Status: records.StatusStored, Intent: records.IntentAuto}, cap, false},
		{"mid-processing", &records.Record{Status: records.StatusLookingUp, Intent: records.IntentAuto}, cap, false},
		{"no automation", &records.Record{Status: records.StatusNotStarted, Intent: records.IntentAuto}, records.Capability{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := state.CanProcess(tc.rec, tc.cap); got != tc.want {
				t.Fatalf("CanProcess = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanUnlink(t *testing.T) {
	for _, status := range []records.Status{records.StatusStored, records.StatusStoredIncomplete, records.StatusStoredCustom} {
		if !state.CanUnlink(&records.Record{Status: status}) {
			t.Fatalf("expected unlink allowed for %s", status)
		}
	}
	for _, status := range []records.Status{records.StatusNotStarted, records.StatusExhausted, records.StatusLookingUp} {
		if state.CanUnlink(&records.Record{Status: status}) {
			t.Fatalf("did not expect unlink allowed for %s", status)
		}
	}
}

func TestCanDeleteLinkedItem(t *testing.T) {
	base := records.Record{ItemKey: "K", ItemCreatedBy: true}

	if !state.CanDeleteLinkedItem(&base, 1) {
		t.Fatal("sole, system-created, untouched item should be deletable")
	}
	shared := base
	if state.CanDeleteLinkedItem(&shared, 2) {
		t.Fatal("shared items must never be auto-deleted")
	}
	foreign := base
	foreign.ItemCreatedBy = false
	if state.CanDeleteLinkedItem(&foreign, 1) {
		t.Fatal("foreign items must never be auto-deleted")
	}
	edited := base
	edited.ItemModified = true
	if state.CanDeleteLinkedItem(&edited, 1) {
		t.Fatal("user-modified items must never be auto-deleted")
	}
	if state.CanDeleteLinkedItem(&records.Record{}, 1) {
		t.Fatal("record without item key has nothing to delete")
	}
}

func TestCanReset(t *testing.T) {
	for _, status := range []records.Status{records.StatusLookingUp, records.StatusScanning, records.StatusExtracting} {
		if state.CanReset(&records.Record{Status: status}) {
			t.Fatalf("reset must be blocked while %s", status)
		}
	}
	for _, status := range []records.Status{records.StatusStored, records.StatusExhausted, records.StatusIgnored} {
		if !state.CanReset(&records.Record{Status: status}) {
			t.Fatalf("reset should be allowed from %s", status)
		}
	}
}

func TestShouldCascade(t *testing.T) {
	retryable := classify.Wrap(classify.ErrNetwork, "lookup", "resolve", "timeout", nil)
	permanent := classify.Wrap(classify.ErrNotFound, "lookup", "resolve", "missing", nil)

	if !state.ShouldCascade(records.StatusLookingUp, retryable) {
		t.Fatal("retryable failure in a processing status should cascade")
	}
	if state.ShouldCascade(records.StatusLookingUp, permanent) {
		t.Fatal("permanent failure must not cascade")
	}
	if state.ShouldCascade(records.StatusStored, retryable) {
		t.Fatal("non-processing status must not cascade")
	}
	if state.ShouldCascade(records.StatusScanning, errors.New("mystery")) != true {
		t.Fatal("unknown failures cascade")
	}
}
