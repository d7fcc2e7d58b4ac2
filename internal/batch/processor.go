package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"citelink/internal/config"
	"citelink/internal/logging"
	"citelink/internal/pipeline"
	"citelink/internal/records"
)

var (
	// ErrSessionNotFound indicates the session id is unknown or already swept.
	ErrSessionNotFound = errors.New("batch session not found")
	// ErrSessionState indicates the session is not in a state that allows
	// the requested control action.
	ErrSessionState = errors.New("batch session state does not allow action")
)

// Options tunes one batch run.
type Options struct {
	// Concurrency bounds the worker pool. Zero means the configured default.
	Concurrency int
	// RespectIntent skips records whose user intent blocks processing
	// instead of counting them as failures.
	RespectIntent bool
}

// Processor runs batches of URL records through the pipeline with a bounded
// worker pool, and keeps an in-memory registry of their sessions. Sessions
// do not survive a process restart.
type Processor struct {
	store  *records.Store
	orch   *pipeline.Orchestrator
	logger *slog.Logger

	defaultConcurrency int
	pausePoll          time.Duration
	retention          time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// NewProcessor builds a processor from configuration and starts the session
// janitor. Call Close to stop it.
func NewProcessor(cfg *config.Config, store *records.Store, orch *pipeline.Orchestrator, logger *slog.Logger) *Processor {
	p := &Processor{
		store:              store,
		orch:               orch,
		logger:             logging.NewComponentLogger(logger, "batch"),
		defaultConcurrency: cfg.Batch.Concurrency,
		pausePoll:          time.Duration(cfg.Batch.PausePollMillis) * time.Millisecond,
		retention:          time.Duration(cfg.Batch.SessionRetentionMinutes) * time.Minute,
		sessions:           make(map[string]*Session),
		janitorStop:        make(chan struct{}),
		janitorDone:        make(chan struct{}),
	}
	go p.janitor()
	return p
}

// Close stops the session janitor. Running batches are unaffected; cancel
// their context to stop them.
func (p *Processor) Close() {
	close(p.janitorStop)
	<-p.janitorDone
}

// Start creates a session over the given URL ids and launches its worker
// pool. The returned session is live; use Get for snapshots.
func (p *Processor) Start(ctx context.Context, urlIDs []int64, opts Options) (*Session, error) {
	if len(urlIDs) == 0 {
		return nil, errors.New("no url ids to process")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = p.defaultConcurrency
	}

	sess := newSession(urlIDs)
	p.mu.Lock()
	p.sessions[sess.ID()] = sess
	p.mu.Unlock()

	p.logger.Info("batch started",
		logging.String(logging.FieldSessionID, sess.ID()),
		logging.Int("total", len(urlIDs)),
		logging.Int("concurrency", concurrency),
	)

	go p.run(ctx, sess, concurrency, opts)
	return sess, nil
}

// run dispatches the session's ids under the concurrency limit. Pause is a
// polling loop so control actions never block on in-flight work; cancel
// halts dispatch while letting in-flight items finish naturally.
func (p *Processor) run(ctx context.Context, sess *Session, concurrency int, opts Options) {
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

dispatch:
	for {
		if ctx.Err() != nil {
			sess.cancel()
			break
		}
		id, ok, status := sess.nextID()
		if !ok {
			if status != SessionPaused {
				break
			}
			select {
			case <-ctx.Done():
				sess.cancel()
				break dispatch
			case <-time.After(p.pausePoll):
			}
			continue
		}
		g.Go(func() error {
			p.processOne(ctx, sess, id, opts)
			return nil
		})
	}

	g.Wait()
	sess.complete()
	close(sess.done)

	snap := sess.Snapshot()
	p.logger.Info("batch finished",
		logging.String(logging.FieldSessionID, sess.ID()),
		logging.String("session_status", string(snap.Status)),
		logging.Int("succeeded", snap.Succeeded),
		logging.Int("failed", snap.Failed),
		logging.Int("skipped", snap.Skipped),
	)
}

func (p *Processor) processOne(ctx context.Context, sess *Session, id int64, opts Options) {
	defer func() {
		// A panic out of the pipeline is a programming error; log it and
		// count the item failed instead of killing the worker pool.
		if r := recover(); r != nil {
			p.logger.Error("worker panic",
				logging.String(logging.FieldSessionID, sess.ID()),
				logging.Int64(logging.FieldURLID, id),
				logging.Any("panic", r),
			)
			sess.recordFailure(id)
		}
	}()

	// A control action can land after the dispatcher takes this id but before
	// the worker pool has a free slot for it. Re-check before doing any work:
	// a cancelled session drops the id, a paused one queues it for redispatch
	// on resume.
	if !sess.admit(id) {
		return
	}

	if opts.RespectIntent {
		rec, err := p.store.GetByID(ctx, id)
		if err != nil {
			p.logger.Warn("load record failed",
				logging.Int64(logging.FieldURLID, id),
				logging.Error(err),
			)
			sess.recordFailure(id)
			return
		}
		if rec == nil {
			sess.recordFailure(id)
			return
		}
		if rec.Intent.BlocksProcessing() {
			sess.recordSkip(id)
			return
		}
	}

	res, err := p.orch.ProcessURL(ctx, id)
	switch {
	case errors.Is(err, pipeline.ErrNotEligible):
		sess.recordSkip(id)
	case err != nil:
		p.logger.Warn("batch item failed",
			logging.String(logging.FieldSessionID, sess.ID()),
			logging.Int64(logging.FieldURLID, id),
			logging.Error(err),
		)
		sess.recordFailure(id)
	case res.Final == records.StatusExhausted:
		sess.recordFailure(id)
	default:
		sess.recordSuccess(id)
	}
}

// Get returns a snapshot of the session, or ErrSessionNotFound.
func (p *Processor) Get(id string) (Snapshot, error) {
	sess, err := p.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// List returns snapshots for every live session.
func (p *Processor) List() []Snapshot {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions))
	for _, sess := range p.sessions {
		sessions = append(sessions, sess)
	}
	p.mu.Unlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		snaps = append(snaps, sess.Snapshot())
	}
	return snaps
}

// Pause suspends dispatch for the session.
func (p *Processor) Pause(id string) error {
	sess, err := p.session(id)
	if err != nil {
		return err
	}
	if !sess.pause() {
		return fmt.Errorf("pause %s: %w", id, ErrSessionState)
	}
	p.logger.Info("batch paused", logging.String(logging.FieldSessionID, id))
	return nil
}

// Resume restarts dispatch for a paused session.
func (p *Processor) Resume(id string) error {
	sess, err := p.session(id)
	if err != nil {
		return err
	}
	if !sess.resume() {
		return fmt.Errorf("resume %s: %w", id, ErrSessionState)
	}
	p.logger.Info("batch resumed", logging.String(logging.FieldSessionID, id))
	return nil
}

// Cancel stops dispatching new work for the session. In-flight items run to
// completion.
func (p *Processor) Cancel(id string) error {
	sess, err := p.session(id)
	if err != nil {
		return err
	}
	if !sess.cancel() {
		return fmt.Errorf("cancel %s: %w", id, ErrSessionState)
	}
	p.logger.Info("batch cancelled", logging.String(logging.FieldSessionID, id))
	return nil
}

func (p *Processor) session(id string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// janitor sweeps terminal sessions once their retention window passes.
func (p *Processor) janitor() {
	defer close(p.janitorDone)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-p.janitorStop:
			return
		case <-ticker.C:
			p.sweep(time.Now())
		}
	}
}

func (p *Processor) sweep(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, sess := range p.sessions {
		finishedAt, done := sess.finished()
		if done && now.Sub(finishedAt) >= p.retention {
			delete(p.sessions, id)
		}
	}
}
