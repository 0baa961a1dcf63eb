package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/hivepress/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the publish and reconcile operations over HTTP",
		Long: `Serve the publish and reconcile operations over HTTP until interrupted.

Routes:
  POST /posts/{id}/publish
  GET  /posts/{id}/record
  POST /posts/{id}/reconcile?auto_approve=true|false
  POST /sweep
  GET  /replies/{author}/{permlink}?start=&max=
  GET  /healthz
  GET  /metrics

Example:
  hivepress serve --addr :8080 --config hivepress.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	log := opts.Logger()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	a, err := openApp(ctx, opts.RootOptions, appOptions{})
	if err != nil {
		return out.Fail(err)
	}
	defer func() {
		if closeErr := a.close(); closeErr != nil {
			log.Error("error closing resources", "error", closeErr)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := server.New(server.Deps{
		Publisher:   a.bridge,
		Reconciler:  a.reconciler,
		Sweeper:     a.sweeper(nil),
		Replies:     a.fetcher,
		Health:      a.store,
		Metrics:     a.metrics,
		AutoApprove: a.cfg.AutoApprove,
		Logger:      log,
	})
	if err := srv.ListenAndServe(ctx, opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "http server", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
