package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"citelink/internal/config"
	"citelink/internal/records"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add URL...",
		Short: "Track one or more bibliographic URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				out := cmd.OutOrStdout()
				for _, raw := range args {
					trimmed := strings.TrimSpace(raw)
					parsed, err := url.Parse(trimmed)
					if err != nil || parsed.Scheme == "" || parsed.Host == "" {
						return fmt.Errorf("invalid url %q", raw)
					}
					if existing, err := store.GetByURL(cmd.Context(), trimmed); err != nil {
						return err
					} else if existing != nil {
						fmt.Fprintf(out, "Already tracked (#%d): %s\n", existing.ID, trimmed)
						continue
					}
					rec, err := store.Add(cmd.Context(), trimmed)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Added #%d: %s\n", rec.ID, rec.URL)
				}
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				var statuses []records.Status
				for _, value := range statusFilters {
					status, ok := records.ParseStatus(value)
					if !ok {
						return fmt.Errorf("unknown status %q", value)
					}
					statuses = append(statuses, status)
				}

				recs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracked URLs")
					return nil
				}

				fmt.Fprintln(cmd.OutOrStdout(), recordListTable(recs))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID|URL",
		Short: "Show a tracked URL in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				rec, err := resolveRecord(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				capability := records.CapabilityFor(rec, cfg.LLM.Enabled)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %d\n", rec.ID)
				fmt.Fprintf(out, "URL:         %s\n", rec.URL)
				fmt.Fprintf(out, "Title:       %s\n", orDash(rec.Title))
				fmt.Fprintf(out, "Status:      %s\n", rec.Status)
				fmt.Fprintf(out, "Intent:      %s\n", rec.Intent)
				fmt.Fprintf(out, "Item key:    %s\n", orDash(rec.ItemKey))
				if rec.ItemKey != "" {
					fmt.Fprintf(out, "Item owned:  %s (modified: %s)\n", yesNo(rec.ItemCreatedBy), yesNo(rec.ItemModified))
				}
				fmt.Fprintf(out, "DOI:         %s\n", orDash(rec.DOI))
				fmt.Fprintf(out, "arXiv:       %s\n", orDash(rec.ArXivID))
				fmt.Fprintf(out, "PMID:        %s\n", orDash(rec.PMID))
				fmt.Fprintf(out, "ISBN:        %s\n", orDash(rec.ISBN))
				fmt.Fprintf(out, "Reachable:   %s\n", yesNo(!rec.Unreachable))
				fmt.Fprintf(out, "Automatable: %s\n", yesNo(capability.SupportsAutomation()))
				if rec.ErrorMessage != "" {
					fmt.Fprintf(out, "Last error:  %s (%s)\n", rec.ErrorMessage, orDash(rec.ErrorCategory))
				}
				fmt.Fprintf(out, "Created:     %s\n", formatTime(rec.CreatedAt))
				fmt.Fprintf(out, "Updated:     %s\n", formatTime(rec.UpdatedAt))
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize tracked URLs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				counts, err := store.StatusCounts(cmd.Context())
				if err != nil {
					return err
				}
				if len(counts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracked URLs")
					return nil
				}

				fmt.Fprintln(cmd.OutOrStdout(), statusSummaryTable(counts))
				return nil
			})
		},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var clear bool
	var reason string

	cmd := &cobra.Command{
		Use:   "history ID|URL",
		Short: "Show a record's processing history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				rec, err := resolveRecord(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				if clear {
					if err := store.ClearHistory(cmd.Context(), rec.ID, reason); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared history for #%d\n", rec.ID)
					return nil
				}

				attempts, err := store.History(cmd.Context(), rec.ID)
				if err != nil {
					return err
				}
				if len(attempts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No processing history")
					return nil
				}

				fmt.Fprintln(cmd.OutOrStdout(), historyTable(attempts))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the record's history, leaving an audit entry")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with --clear")
	return cmd
}
