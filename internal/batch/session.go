package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a batch session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
)

// Session tracks the progress of one batch run. All mutation goes through
// its mutex; readers get copied snapshots, never live references.
type Session struct {
	mu sync.Mutex

	id         string
	urlIDs     []int64
	status     SessionStatus
	dispatched int
	requeued   []int64
	completed  []int64
	failed     []int64
	skipped    []int64
	startedAt  time.Time
	finishedAt time.Time

	done chan struct{}
}

func newSession(urlIDs []int64) *Session {
	return &Session{
		id:        uuid.NewString(),
		urlIDs:    urlIDs,
		status:    SessionRunning,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

// Snapshot is a read-only copy of a session's progress. CompletedIDs,
// FailedIDs, and SkippedIDs are disjoint: each dispatched id lands in
// exactly one of them.
type Snapshot struct {
	ID                  string
	Status              SessionStatus
	Total               int
	Current             int
	Succeeded           int
	Failed              int
	Skipped             int
	CompletedIDs        []int64
	FailedIDs           []int64
	SkippedIDs          []int64
	StartedAt           time.Time
	FinishedAt          time.Time
	EstimatedCompletion time.Time
}

// Snapshot copies the session's current progress for reporting.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		Status:       s.status,
		Total:        len(s.urlIDs),
		Current:      len(s.completed) + len(s.failed) + len(s.skipped),
		Succeeded:    len(s.completed),
		Failed:       len(s.failed),
		Skipped:      len(s.skipped),
		CompletedIDs: append([]int64(nil), s.completed...),
		FailedIDs:    append([]int64(nil), s.failed...),
		SkippedIDs:   append([]int64(nil), s.skipped...),
		StartedAt:    s.startedAt,
		FinishedAt:   s.finishedAt,
	}
	if snap.Current > 0 && snap.Current < snap.Total && s.status == SessionRunning {
		elapsed := time.Since(s.startedAt)
		perItem := elapsed / time.Duration(snap.Current)
		snap.EstimatedCompletion = time.Now().Add(perItem * time.Duration(snap.Total-snap.Current))
	}
	return snap
}

// nextID hands out the next URL id to a worker, or false when dispatch is
// over: the list is drained, or the session was cancelled. A paused session
// reports neither; callers poll until it resolves.
func (s *Session) nextID() (int64, bool, SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == SessionCancelled {
		return 0, false, s.status
	}
	if s.status == SessionPaused {
		return 0, false, s.status
	}
	if len(s.requeued) > 0 {
		id := s.requeued[0]
		s.requeued = s.requeued[1:]
		return id, true, s.status
	}
	if s.dispatched >= len(s.urlIDs) {
		return 0, false, s.status
	}
	id := s.urlIDs[s.dispatched]
	s.dispatched++
	return id, true, s.status
}

// admit decides whether a dispatched id should still run. A control action
// can land between nextID handing the id out and the worker getting a pool
// slot; the decision is made under the mutex so it cannot race a concurrent
// status change. Cancelled sessions drop the id, paused sessions queue it
// for redispatch on resume.
func (s *Session) admit(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case SessionCancelled:
		return false
	case SessionPaused:
		s.requeued = append(s.requeued, id)
		return false
	}
	return true
}

func (s *Session) recordSuccess(id int64) {
	s.mu.Lock()
	s.completed = append(s.completed, id)
	s.mu.Unlock()
}

func (s *Session) recordFailure(id int64) {
	s.mu.Lock()
	s.failed = append(s.failed, id)
	s.mu.Unlock()
}

func (s *Session) recordSkip(id int64) {
	s.mu.Lock()
	s.skipped = append(s.skipped, id)
	s.mu.Unlock()
}

// pause suspends dispatch of new work. In-flight items run to completion.
func (s *Session) pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionRunning {
		return false
	}
	s.status = SessionPaused
	return true
}

func (s *Session) resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionPaused {
		return false
	}
	s.status = SessionRunning
	return true
}

// cancel halts dispatch immediately. Workers already processing an item let
// it finish naturally.
func (s *Session) cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == SessionCompleted || s.status == SessionCancelled {
		return false
	}
	s.status = SessionCancelled
	s.finishedAt = time.Now()
	return true
}

func (s *Session) complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == SessionCancelled {
		return
	}
	s.status = SessionCompleted
	s.finishedAt = time.Now()
}

// Wait blocks until the session's worker pool has drained (including any
// in-flight items after a cancel) or the context ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

// finished reports whether the session reached a terminal status, and when.
func (s *Session) finished() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == SessionCompleted || s.status == SessionCancelled {
		return s.finishedAt, true
	}
	return time.Time{}, false
}
