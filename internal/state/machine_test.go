package state_test

import (
	"context"
	"errors"
	"testing"

	"citelink/internal/records"
	"citelink/internal/state"
	"citelink/internal/testsupport"
)

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to records.Status
		want     bool
	}{
		{records.StatusNotStarted, records.StatusLookingUp, true},
		{records.StatusNotStarted, records.StatusIgnored, true},
		{records.StatusNotStarted, records.StatusStoredCustom, true},
		{records.StatusNotStarted, records.StatusStored, false},
		{records.StatusLookingUp, records.StatusStored, true},
		{records.StatusLookingUp, records.StatusScanning, true},
		{records.StatusLookingUp, records.StatusNotStarted, false},
		{records.StatusScanning, records.StatusAwaitingSelection, true},
		{records.StatusScanning, records.StatusStored, false},
		{records.StatusExtracting, records.StatusAwaitingMetadata, true},
		{records.StatusAwaitingSelection, records.StatusLookingUp, true},
		{records.StatusAwaitingMetadata, records.StatusStoredIncomplete, true},
		{records.StatusStored, records.StatusNotStarted, true},
		{records.StatusStored, records.StatusExhausted, false},
		{records.StatusExhausted, records.StatusStoredCustom, true},
		{records.StatusArchived, records.StatusNotStarted, true},
	}
	for _, tc := range cases {
		if got := state.CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestEveryNonProcessingStatusCanReset(t *testing.T) {
	for _, status := range records.AllStatuses() {
		if records.IsProcessingStatus(status) || status == records.StatusNotStarted {
			continue
		}
		if !state.CanTransition(status, records.StatusNotStarted) {
			t.Fatalf("expected %s → not_started to be legal", status)
		}
	}
}

func TestProcessingStatusesCannotReset(t *testing.T) {
	for _, status := range []records.Status{records.StatusLookingUp, records.StatusScanning, records.StatusExtracting} {
		if state.CanTransition(status, records.StatusNotStarted) {
			t.Fatalf("did not expect %s → not_started to be legal", status)
		}
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	machine := state.NewMachine(store, nil)
	ctx := context.Background()
	rec := testsupport.AddURL(t, store, "https://example.org/illegal")

	_, err := machine.Transition(ctx, rec.ID, records.StatusNotStarted, records.StatusStored, nil)
	if !errors.Is(err, state.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	fetched, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != records.StatusNotStarted {
		t.Fatalf("status mutated by rejected transition: %s", fetched.Status)
	}
	history, err := store.History(ctx, rec.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("rejected transition must not append history, got %d entries", len(history))
	}
}

func TestTransitionStaleFromFailsCleanly(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	machine := state.NewMachine(store, nil)
	ctx := context.Background()
	rec := testsupport.AddURL(t, store, "https://example.org/stale")

	if _, err := machine.Transition(ctx, rec.ID, records.StatusNotStarted, records.StatusLookingUp, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	// Second caller raced and still expects not_started.
	_, err := machine.Transition(ctx, rec.ID, records.StatusNotStarted, records.StatusScanning, &records.Attempt{Stage: "scan"})
	if !errors.Is(err, records.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	fetched, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != records.StatusLookingUp {
		t.Fatalf("status corrupted by stale transition: %s", fetched.Status)
	}
	history, err := store.History(ctx, rec.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("stale transition must not append history, got %d entries", len(history))
	}
}

func TestTransitionAppendsExactlyOneEntry(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	machine := state.NewMachine(store, nil)
	ctx := context.Background()
	rec := testsupport.AddURL(t, store, "https://example.org/one-entry")

	if _, err := machine.Transition(ctx, rec.ID, records.StatusNotStarted, records.StatusLookingUp, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	attempt := &records.Attempt{Stage: "lookup", Success: true, ItemKey: "KEY1"}
	if _, err := machine.Transition(ctx, rec.ID, records.StatusLookingUp, records.StatusStored, attempt); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	history, err := store.History(ctx, rec.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", len(history))
	}
}

func TestTransitionHooksFire(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	machine := state.NewMachine(store, nil)
	ctx := context.Background()
	rec := testsupport.AddURL(t, store, "https://example.org/hooks")

	var fired []records.Status
	machine.OnTransition(func(_ context.Context, _ *records.Record, _, to records.Status) {
		fired = append(fired, to)
	})

	if _, err := machine.Transition(ctx, rec.ID, records.StatusNotStarted, records.StatusLookingUp, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if _, err := machine.Transition(ctx, rec.ID, records.StatusLookingUp, records.StatusExhausted, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if len(fired) != 2 || fired[1] != records.StatusExhausted {
		t.Fatalf("unexpected hook invocations %v", fired)
	}
}
