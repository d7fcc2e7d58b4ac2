package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"citelink/internal/classify"
	"citelink/internal/logging"
	"citelink/internal/records"
	"citelink/internal/state"
)

// ErrNotEligible indicates the record's intent, status, or capability rules
// out automated processing right now.
var ErrNotEligible = errors.New("record not eligible for processing")

const defaultStageTimeout = 60 * time.Second

// Orchestrator runs the ordered stage pipeline for one URL at a time.
type Orchestrator struct {
	store             *records.Store
	machine           *state.Machine
	stages            []Stage
	logger            *slog.Logger
	stageTimeout      time.Duration
	extractionEnabled bool
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithStageTimeout bounds each external stage call.
func WithStageTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.stageTimeout = timeout
		}
	}
}

// WithExtractionEnabled toggles whether AI-assisted extraction counts as an
// available capability.
func WithExtractionEnabled(enabled bool) Option {
	return func(o *Orchestrator) {
		o.extractionEnabled = enabled
	}
}

// New constructs an orchestrator over the given stage list. Stage order is the
// cascade order.
func New(store *records.Store, machine *state.Machine, stages []Stage, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:             store,
		machine:           machine,
		stages:            stages,
		logger:            logging.NewComponentLogger(logger, "orchestrator"),
		stageTimeout:      defaultStageTimeout,
		extractionEnabled: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunResult summarizes one pipeline run over a URL record.
type RunResult struct {
	URLID    int64
	Final    records.Status
	Attempts int
}

// ProcessURL loads the record, verifies eligibility, and walks it through the
// stage pipeline, entering at the earliest stage the record's capability
// supports. Every stage call is recorded in history regardless of outcome.
func (o *Orchestrator) ProcessURL(ctx context.Context, id int64) (RunResult, error) {
	rec, err := o.store.GetByID(ctx, id)
	if err != nil {
		return RunResult{URLID: id}, fmt.Errorf("load record: %w", err)
	}
	if rec == nil {
		return RunResult{URLID: id}, fmt.Errorf("record %d not found", id)
	}

	capability := records.CapabilityFor(rec, o.extractionEnabled)
	if !state.CanProcess(rec, capability) {
		return RunResult{URLID: id, Final: rec.Status}, fmt.Errorf("record %d (%s/%s): %w", id, rec.Status, rec.Intent, ErrNotEligible)
	}

	supported := make([]Stage, 0, len(o.stages))
	for _, stg := range o.stages {
		if stg.Supports(capability) {
			supported = append(supported, stg)
		}
	}
	if len(supported) == 0 {
		return RunResult{URLID: id, Final: rec.Status}, fmt.Errorf("record %d: no viable stage: %w", id, ErrNotEligible)
	}

	ctx = logging.WithURLID(ctx, id)
	logger := logging.WithContext(ctx, o.logger)

	// Enter the pipeline. The compare-and-swap inside Transition is what
	// keeps a second concurrent run off this record.
	current := rec.Status
	rec, err = o.machine.Transition(ctx, id, current, supported[0].ProcessingStatus(), nil)
	if err != nil {
		return RunResult{URLID: id, Final: current}, fmt.Errorf("enter pipeline: %w", err)
	}
	current = supported[0].ProcessingStatus()

	result := RunResult{URLID: id}

	for i, stg := range supported {
		stageCtx := logging.WithStage(ctx, stg.Name())
		stageLogger := logging.WithContext(stageCtx, o.logger)
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.String("processing_status", string(current)),
		)

		runCtx, cancel := context.WithTimeout(stageCtx, o.stageTimeout)
		started := time.Now()
		stageResult, runErr := stg.Run(runCtx, rec)
		cancel()
		duration := time.Since(started)
		result.Attempts++

		if runErr == nil {
			if rec.ErrorMessage != "" || rec.ErrorCategory != "" {
				rec.ErrorMessage = ""
				rec.ErrorCategory = ""
				if uerr := o.store.Update(ctx, rec); uerr != nil {
					return result, fmt.Errorf("clear error state: %w", uerr)
				}
			}
			target := stageResult.Disposition.status()
			attempt := &records.Attempt{
				Stage:    stg.Name(),
				Method:   stageResult.Method,
				Success:  true,
				ItemKey:  stageResult.ItemKey,
				Duration: duration,
				Metadata: stageResult.Metadata,
			}
			if _, err := o.machine.Transition(ctx, id, current, target, attempt); err != nil {
				return result, fmt.Errorf("record stage success: %w", err)
			}
			stageLogger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.String("next_status", string(target)),
				logging.Duration("stage_duration", duration),
			)
			result.Final = target
			return result, nil
		}

		// The loop walks the stage list forward exactly once, so a failing
		// stage cascades at most once per run and loops are impossible.
		category := classify.Classify(runErr)

		attempt := &records.Attempt{
			Stage:         stg.Name(),
			Method:        stageResult.Method,
			Success:       false,
			ErrorMessage:  runErr.Error(),
			ErrorCategory: string(category),
			Duration:      duration,
		}

		rec.ErrorMessage = runErr.Error()
		rec.ErrorCategory = string(category)
		if uerr := o.store.Update(ctx, rec); uerr != nil {
			return result, fmt.Errorf("record error state: %w", uerr)
		}

		cascade := state.ShouldCascade(current, runErr) &&
			category != classify.CategoryPermanent &&
			i+1 < len(supported)

		stageLogger.Warn("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String(logging.FieldErrorCategory, string(category)),
			logging.Bool("cascade", cascade),
			logging.Error(runErr),
		)

		if cascade {
			next := supported[i+1].ProcessingStatus()
			rec, err = o.machine.Transition(ctx, id, current, next, attempt)
			if err != nil {
				return result, fmt.Errorf("cascade to %s: %w", next, err)
			}
			current = next
			continue
		}

		if _, err := o.machine.Transition(ctx, id, current, records.StatusExhausted, attempt); err != nil {
			return result, fmt.Errorf("record stage failure: %w", err)
		}
		logger.Info("pipeline exhausted",
			logging.String(logging.FieldEventType, "pipeline_exhausted"),
			logging.Int("attempts", result.Attempts),
		)
		result.Final = records.StatusExhausted
		return result, nil
	}

	// Unreachable: the last stage either succeeds or terminates above.
	result.Final = records.StatusExhausted
	return result, nil
}
