package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"citelink/internal/logging"
	"citelink/internal/records"
)

// ErrInvalidTransition indicates the requested transition is not in the table.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists every status's legal successors. Any status missing from
// this table has no successors.
var transitions = map[records.Status][]records.Status{
	records.StatusNotStarted: {
		records.StatusLookingUp,
		records.StatusScanning,
		records.StatusExtracting,
		records.StatusIgnored,
		records.StatusArchived,
		records.StatusStoredCustom,
	},
	records.StatusLookingUp: {
		records.StatusStored,
		records.StatusStoredIncomplete,
		records.StatusScanning,
		records.StatusExtracting,
		records.StatusExhausted,
	},
	records.StatusScanning: {
		records.StatusAwaitingSelection,
		records.StatusExtracting,
		records.StatusExhausted,
	},
	records.StatusExtracting: {
		records.StatusAwaitingMetadata,
		records.StatusExhausted,
	},
	records.StatusAwaitingSelection: {
		records.StatusLookingUp,
		records.StatusNotStarted,
		records.StatusIgnored,
		records.StatusArchived,
		records.StatusStoredCustom,
	},
	records.StatusAwaitingMetadata: {
		records.StatusStored,
		records.StatusStoredIncomplete,
		records.StatusNotStarted,
		records.StatusIgnored,
		records.StatusArchived,
	},
	records.StatusStored: {
		records.StatusNotStarted,
		records.StatusStoredIncomplete,
	},
	records.StatusStoredIncomplete: {
		records.StatusNotStarted,
		records.StatusStored,
		records.StatusStoredCustom,
	},
	records.StatusStoredCustom: {
		records.StatusNotStarted,
	},
	records.StatusExhausted: {
		records.StatusStoredCustom,
		records.StatusNotStarted,
		records.StatusIgnored,
		records.StatusArchived,
	},
	records.StatusIgnored: {
		records.StatusNotStarted,
		records.StatusArchived,
	},
	records.StatusArchived: {
		records.StatusNotStarted,
	},
}

// CanTransition reports whether the static table allows from → to.
func CanTransition(from, to records.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns a copy of the legal successor set for a status.
func Successors(from records.Status) []records.Status {
	next := transitions[from]
	cp := make([]records.Status, len(next))
	copy(cp, next)
	return cp
}

// Hook runs after a successful transition. Hooks must not block; anything
// slow belongs on the hook's own goroutine.
type Hook func(ctx context.Context, rec *records.Record, from, to records.Status)

// Machine performs validated, serialized status transitions.
type Machine struct {
	store  *records.Store
	logger *slog.Logger
	hooks  []Hook
}

// NewMachine constructs a state machine over the given store.
func NewMachine(store *records.Store, logger *slog.Logger) *Machine {
	return &Machine{
		store:  store,
		logger: logging.NewComponentLogger(logger, "state-machine"),
	}
}

// OnTransition registers a side-effect invoked after each successful transition.
func (m *Machine) OnTransition(hook Hook) {
	if hook != nil {
		m.hooks = append(m.hooks, hook)
	}
}

// Transition moves a record from an expected status to a new one, optionally
// appending a history entry atomically. The expected status is re-verified by
// the store's compare-and-swap; a concurrent transition racing in surfaces as
// records.ErrStatusConflict and leaves both status and history untouched.
func (m *Machine) Transition(ctx context.Context, id int64, from, to records.Status, attempt *records.Attempt) (*records.Record, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("record %d: %s → %s: %w", id, from, to, ErrInvalidTransition)
	}

	if err := m.store.TransitionStatus(ctx, id, from, to, attempt); err != nil {
		return nil, err
	}

	rec, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload record after transition: %w", err)
	}

	m.logger.Debug("status transition",
		logging.Int64(logging.FieldURLID, id),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
	)

	for _, hook := range m.hooks {
		hook(ctx, rec, from, to)
	}
	return rec, nil
}
