package cli

import (
	"context"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/chain"
	"github.com/roach88/hivepress/internal/config"
	"github.com/roach88/hivepress/internal/keylock"
	"github.com/roach88/hivepress/internal/metrics"
	"github.com/roach88/hivepress/internal/publish"
	"github.com/roach88/hivepress/internal/reconcile"
	"github.com/roach88/hivepress/internal/replies"
	"github.com/roach88/hivepress/internal/store"
)

// app is the wired component graph for one CLI invocation.
type app struct {
	cfg        config.Config
	store      store.Backend
	node       *chain.Client
	locker     keylock.Locker
	metrics    *metrics.Metrics
	bridge     *publish.Bridge
	fetcher    *replies.Fetcher
	reconciler *reconcile.Reconciler

	closers []func() error
}

// appOptions adjusts wiring for tests.
type appOptions struct {
	signer chain.Signer
	clock  reconcile.Clock
}

// loadConfig applies the --config and --env-file flags.
func loadConfig(opts *RootOptions) (config.Config, error) {
	return config.Load(config.LoadOptions{File: opts.ConfigFile, EnvFile: opts.EnvFile})
}

// openStore opens only the configured backend, for commands that never
// talk to a node.
func openStore(ctx context.Context, opts *RootOptions) (config.Config, store.Backend, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return config.Config{}, nil, err
	}
	st, err := store.OpenBackend(ctx, cfg.Database)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, st, nil
}

// openApp loads configuration and wires every component. The caller must
// call close.
func openApp(ctx context.Context, opts *RootOptions, aopts appOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	log := opts.Logger()

	a := &app{cfg: cfg, metrics: metrics.New()}

	a.store, err = store.OpenBackend(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	a.node, err = chain.Dial(ctx, chain.ClientConfig{
		URL:     cfg.NodeURL,
		Token:   cfg.APIToken,
		Timeout: cfg.Timeout,
		Logger:  log,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.node.Close(); return nil })

	if cfg.RedisAddr != "" {
		rl, err := keylock.NewRedis(cfg.RedisAddr)
		if err != nil {
			a.close()
			return nil, err
		}
		a.locker = rl
		a.closers = append(a.closers, rl.Close)
	} else {
		a.locker = keylock.NewLocal()
	}

	bridgeOpts := []publish.Option{
		publish.WithLocker(a.locker),
		publish.WithMetrics(a.metrics),
		publish.WithLogger(log),
	}
	if aopts.signer != nil {
		bridgeOpts = append(bridgeOpts, publish.WithSigner(aopts.signer))
	}
	a.bridge = publish.New(cfg, a.store, a.node, bridgeOpts...)

	a.fetcher = replies.New(a.node,
		replies.WithPageSize(cfg.ReplyPageSize),
		replies.WithRate(cfg.ReplyRate),
		replies.WithLogger(log),
	)

	reconcileOpts := []reconcile.Option{
		reconcile.WithLocker(a.locker),
		reconcile.WithMetrics(a.metrics),
		reconcile.WithLogger(log),
	}
	if aopts.clock != nil {
		reconcileOpts = append(reconcileOpts, reconcile.WithClock(aopts.clock))
	}
	a.reconciler = reconcile.New(cfg, a.store, a.fetcher, reconcileOpts...)

	return a, nil
}

// sweeper builds a Sweeper over the app's reconciler. A nil ids uses
// UUIDv7 run ids.
func (a *app) sweeper(ids reconcile.RunIDGenerator) *reconcile.Sweeper {
	return reconcile.NewSweeper(a.reconciler, a.store, ids)
}

func (a *app) close() error {
	var errs *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	a.closers = nil
	return errs.ErrorOrNil()
}

// parsePostID parses a positive post id argument.
func parsePostID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, bridge.NewValidationError("invalid post id %q", arg)
	}
	return id, nil
}
