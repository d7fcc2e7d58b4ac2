package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"citelink/internal/batch"
	"citelink/internal/logging"
	"citelink/internal/pipeline"
	"citelink/internal/records"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process ID|URL...",
		Short: "Run the resolution pipeline for specific URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				out := cmd.OutOrStdout()
				var failures int
				for _, arg := range args {
					rec, err := resolveRecord(runCtx, svcs.store, arg)
					if err != nil {
						return err
					}

					result, err := svcs.orch.ProcessURL(runCtx, rec.ID)
					switch {
					case errors.Is(err, pipeline.ErrNotEligible):
						fmt.Fprintf(out, "#%d skipped: %v\n", rec.ID, err)
					case err != nil:
						failures++
						fmt.Fprintf(out, "#%d error: %v\n", rec.ID, err)
					default:
						if result.Final == records.StatusExhausted {
							failures++
						}
						fmt.Fprintf(out, "#%d -> %s (%d attempt(s))\n", rec.ID, result.Final, result.Attempts)
					}

					if runCtx.Err() != nil {
						return runCtx.Err()
					}
				}
				if failures > 0 {
					return fmt.Errorf("%d of %d urls did not resolve", failures, len(args))
				}
				return nil
			})
		},
	}
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var concurrency int
	var respectIntent bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process pending URLs as a batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				statuses := []records.Status{records.StatusNotStarted}
				if len(statusFilters) > 0 {
					statuses = statuses[:0]
					for _, value := range statusFilters {
						status, ok := records.ParseStatus(value)
						if !ok {
							return fmt.Errorf("unknown status %q", value)
						}
						statuses = append(statuses, status)
					}
				}

				recs, err := svcs.store.List(runCtx, statuses...)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to process")
					return nil
				}
				ids := make([]int64, 0, len(recs))
				for _, rec := range recs {
					ids = append(ids, rec.ID)
				}

				sess, err := svcs.processor.Start(runCtx, ids, batch.Options{
					Concurrency:   concurrency,
					RespectIntent: respectIntent,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %s started: %d url(s)\n", sess.ID(), len(ids))

				ticker := time.NewTicker(2 * time.Second)
				defer ticker.Stop()
				done := make(chan error, 1)
				go func() { done <- sess.Wait(runCtx) }()
				for {
					select {
					case err := <-done:
						if err != nil {
							return err
						}
						snap := sess.Snapshot()
						fmt.Fprintf(out, "Batch %s: %d resolved, %d failed, %d skipped (%s)\n",
							snap.Status, snap.Succeeded, snap.Failed, snap.Skipped,
							snap.FinishedAt.Sub(snap.StartedAt).Round(time.Second))

						if notifyErr := svcs.notifier.NotifyBatchCompleted(
							runCtx, snap.Succeeded, snap.Failed, snap.FinishedAt.Sub(snap.StartedAt),
						); notifyErr != nil {
							svcs.logger.Warn("batch notification failed", logging.Error(notifyErr))
						}
						if snap.Failed > 0 {
							return fmt.Errorf("%d url(s) did not resolve", snap.Failed)
						}
						return nil
					case <-ticker.C:
						snap := sess.Snapshot()
						fmt.Fprintf(out, "  %d/%d done (%d ok, %d failed, %d skipped)\n",
							snap.Current, snap.Total, snap.Succeeded, snap.Failed, snap.Skipped)
					}
				}
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Statuses to include (default not_started)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Worker count override")
	cmd.Flags().BoolVar(&respectIntent, "respect-intent", true, "Skip records whose intent blocks processing")
	return cmd
}
