package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"citelink/internal/logging"
	"citelink/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svcs *services) error {
				if bind != "" {
					svcs.cfg.Paths.APIBind = bind
				}

				// One server per data directory; a second instance would race
				// batch sessions against the same store.
				lockPath := filepath.Join(svcs.cfg.Paths.DataDir, "citelink.lock")
				lock := flock.New(lockPath)
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire lock %s: %w", lockPath, err)
				}
				if !locked {
					return errors.New("another citelink server is already running")
				}
				defer func() { _ = lock.Unlock() }()

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				srv := server.New(svcs.cfg, svcs.store, svcs.actions, svcs.processor, svcs.logger)
				if err := srv.Start(runCtx); err != nil {
					return err
				}
				defer srv.Stop()

				fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", srv.Addr())
				<-runCtx.Done()
				svcs.logger.Info("server shutting down", logging.String("address", srv.Addr()))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address override (host:port)")
	return cmd
}
