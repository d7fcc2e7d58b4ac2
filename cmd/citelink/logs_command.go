package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"citelink/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var tailLines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, "citelink.log")
			out := cmd.OutOrStdout()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tailer := logs.NewTailer(path)
			lines, offset, err := tailer.Last(tailLines)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			for {
				lines, next, err := tailer.Since(runCtx, offset, 2*time.Second)
				if err != nil {
					if runCtx.Err() != nil {
						return nil
					}
					return err
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
				offset = next
				if runCtx.Err() != nil {
					return nil
				}
			}
		},
	}

	cmd.Flags().IntVar(&tailLines, "tail", 100, "Number of trailing lines to show")
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep streaming new lines")
	return cmd
}
