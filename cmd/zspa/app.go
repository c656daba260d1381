package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/0x-stone/zspa/internal/config"
	"github.com/0x-stone/zspa/pkg/adapters/memory"
	"github.com/0x-stone/zspa/pkg/adapters/nearai"
	"github.com/0x-stone/zspa/pkg/adapters/oneclick"
	"github.com/0x-stone/zspa/pkg/adapters/redis"
	"github.com/0x-stone/zspa/pkg/adapters/sqlite"
	"github.com/0x-stone/zspa/pkg/agent"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/observability"
	"github.com/0x-stone/zspa/pkg/persistence/middleware"
	"github.com/0x-stone/zspa/pkg/ports"
	"github.com/0x-stone/zspa/pkg/runner"
	"github.com/0x-stone/zspa/pkg/session"
	"github.com/0x-stone/zspa/pkg/verifier"
)

// app holds the wired service.
type app struct {
	graph    *graph.Graph
	runtime  *runner.Runtime
	sessions *session.Manager
	metrics  *observability.Metrics
	closers  []func() error
}

// catalog is what the agent needs from the fundraiser backend.
type catalog interface {
	ports.Persistence
	ports.Search
}

// newApp wires every component named by cfg. seedPath, when set, names a
// JSON array of fundraisers loaded into the catalog.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, seedPath string) (_ *app, err error) {
	a := &app{metrics: observability.NewMetrics()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	store, locker, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	sessionOpts := []session.Option{session.WithLogger(logger), session.WithLockTTL(cfg.Store.LockTTL)}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}
	a.sessions = session.NewManager(store, sessionOpts...)

	causes, closeCatalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeCatalog)
	if seedPath != "" {
		n, err := seedCatalog(ctx, causes, seedPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Catalog seeded", "path", seedPath, "causes", n)
	}

	hooks := observability.Chain(a.metrics.Hooks(), observability.LoggingHooks(logger))

	model := nearai.New(cfg.Inference.APIKey,
		nearai.WithBaseURL(cfg.Inference.BaseURL),
		nearai.WithModel(cfg.Inference.Model),
		nearai.WithTemperature(cfg.Inference.Temperature),
		nearai.WithTimeouts(cfg.Inference.Timeout, cfg.Inference.SignatureTimeout),
	)
	swap := oneclick.New(
		oneclick.WithBaseURL(cfg.Swap.BaseURL),
		oneclick.WithReferral(cfg.Swap.Referral),
		oneclick.WithSlippage(cfg.Swap.SlippageBps),
		oneclick.WithQuoteDeadline(cfg.Swap.QuoteDeadline),
		oneclick.WithTimeouts(cfg.Swap.CatalogTimeout, cfg.Swap.QuoteTimeout, cfg.Swap.StatusTimeout),
	)
	v := verifier.New(model,
		verifier.WithMaxAttempts(cfg.Verifier.MaxRetries),
		verifier.WithBackoff(cfg.Verifier.Backoff),
		verifier.WithLogger(logger),
		verifier.WithHooks(hooks),
	)

	a.graph, err = agent.New(agent.Deps{
		Persistence: causes,
		Search:      causes,
		Model:       model,
		Swap:        swap,
		Verifier:    v,
	},
		agent.WithPolling(cfg.Poller.MaxRetries, cfg.Poller.Interval),
		agent.WithOriginAsset(cfg.Swap.OriginSymbol, cfg.Swap.OriginChain),
		agent.WithLogger(logger),
		agent.WithHooks(hooks),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	scheduler := graph.NewScheduler(a.graph, graph.WithHooks(hooks), graph.WithLogger(logger))
	a.runtime = runner.New(scheduler, a.sessions,
		runner.WithLogger(logger),
		runner.WithForkGrace(cfg.Server.ForkGrace),
		runner.WithMaxInputSize(cfg.Server.MaxInputSize),
		runner.WithHooks(hooks),
	)
	return a, nil
}

// Close releases the stores in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore builds the session store and, for redis, its distributed locker.
func openStore(cfg config.Config, logger *slog.Logger) (ports.StateStore, ports.DistributedLocker, func() error, error) {
	var (
		store  ports.StateStore
		locker ports.DistributedLocker
		closer = func() error { return nil }
	)
	switch cfg.Store.Driver {
	case "redis":
		rs := redis.New(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB,
			redis.WithPrefix(cfg.Store.Prefix),
			redis.WithTTL(cfg.Store.TTL),
		)
		store, closer = rs, rs.Close
		locker = redis.NewLocker(rs.Client(), cfg.Store.Prefix+"lock:")
		logger.Debug("Using redis session store", "addr", cfg.Store.RedisAddr, "prefix", cfg.Store.Prefix)
	default:
		store = memory.NewStore()
		logger.Debug("Using in-memory session store")
	}

	if cfg.Store.EncryptionKey == "" {
		return store, locker, closer, nil
	}
	active, err := middleware.ParseKey(cfg.Store.EncryptionKey)
	if err != nil {
		_ = closer()
		return nil, nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	encCfg := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.Store.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			_ = closer()
			return nil, nil, nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		encCfg.FallbackKeys = append(encCfg.FallbackKeys, key)
	}
	enc, err := middleware.NewEncryptionMiddleware(encCfg)
	if err != nil {
		_ = closer()
		return nil, nil, nil, err
	}
	return middleware.Chain(store, enc), locker, closer, nil
}

func openCatalog(ctx context.Context, cfg config.Config) (catalog, func() error, error) {
	if cfg.Persistence.Driver == "sqlite" {
		db, err := sqlite.Open(ctx, cfg.Persistence.DSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return memory.NewCatalog(), func() error { return nil }, nil
}

// seedCatalog loads fundraisers from a JSON file into c.
func seedCatalog(ctx context.Context, c catalog, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	var causes []domain.Cause
	if err := json.Unmarshal(data, &causes); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	for _, cause := range causes {
		if cause.ID == "" {
			return 0, fmt.Errorf("seed file %s: fundraiser %q has no id", path, cause.Title)
		}
		switch dst := c.(type) {
		case *sqlite.Store:
			if err := dst.PutCause(ctx, cause); err != nil {
				return 0, err
			}
		case *memory.Catalog:
			dst.Put(cause)
		default:
			return 0, fmt.Errorf("catalog %T cannot be seeded", c)
		}
	}
	return len(causes), nil
}
