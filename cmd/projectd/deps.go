package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/access"
	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/http"
	"github.com/fyrsmithlabs/projectd/internal/orchestrator"
	"github.com/fyrsmithlabs/projectd/internal/project"
	"github.com/fyrsmithlabs/projectd/internal/secrets"
	"github.com/fyrsmithlabs/projectd/internal/store/memory"
	"github.com/fyrsmithlabs/projectd/internal/store/mongo"
	"github.com/fyrsmithlabs/projectd/internal/store/postgres"
	"github.com/fyrsmithlabs/projectd/internal/telemetry"
	"github.com/fyrsmithlabs/projectd/pkg/auth"
)

// closeTimeout bounds each resource release during shutdown.
const closeTimeout = 5 * time.Second

// application holds the wired server and the resources it owns.
type application struct {
	server  *http.Server
	closers []func()
}

// close releases resources in reverse acquisition order.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires every component from cfg. Metrics go to reg, or to the
// default Prometheus registry when reg is nil. On error, anything already
// acquired is released.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	if cfg.Secrets.Enabled {
		provider, err := secrets.OpenProvider(ctx, cfg.Secrets, logger)
		if err != nil {
			return nil, fmt.Errorf("open secrets provider: %w", err)
		}
		if err := provider.Resolve(ctx, cfg); err != nil {
			return nil, fmt.Errorf("resolve secrets: %w", err)
		}
	}
	if !cfg.Auth.Secret.IsSet() {
		return nil, errors.New("auth secret is empty after secret resolution")
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version), logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	})

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeStore)

	pub, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("publisher close failed", zap.Error(err))
		}
	})

	mgr, err := project.NewManager(store, project.ManagerConfig{
		Timeout: cfg.Operations.Timeout.Duration(),
	}, logger.Named("manager"))
	if err != nil {
		return nil, err
	}

	evaluator, err := access.NewEvaluator(access.ManagerFinder{Manager: mgr}, logger.Named("access"))
	if err != nil {
		return nil, err
	}

	emitter, err := events.NewEmitter(pub, events.EmitterConfig{
		Timeout: cfg.Events.Timeout.Duration(),
	}, logger.Named("events"))
	if err != nil {
		return nil, err
	}

	orchCfg := orchestrator.Config{TracerProvider: tel.TracerProvider()}
	httpCfg := &http.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: version,
		RateLimit: http.RateLimitConfig{
			Enabled:           cfg.Auth.RateLimit.Enabled,
			RequestsPerSecond: cfg.Auth.RateLimit.RequestsPerSecond,
			Burst:             cfg.Auth.RateLimit.Burst,
		},
	}
	if reg != nil {
		orchCfg.Metrics = orchestrator.NewMetrics(reg)
		httpCfg.Registerer = reg
		httpCfg.Gatherer = reg
	}

	orch, err := orchestrator.New(evaluator, mgr, emitter, orchCfg, logger.Named("orchestrator"))
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   []byte(cfg.Auth.Secret.Value()),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return nil, err
	}

	app.server, err = http.NewServer(orch, verifier, logger.Named("http"), httpCfg)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// openStore returns the configured backend and its release function.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (project.Store, func(), error) {
	logger = logger.Named("store")

	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil

	case config.StoreMongo:
		s, err := mongo.Open(ctx, mongo.Config{
			URI:              cfg.Store.Mongo.URI.Value(),
			Database:         cfg.Store.Mongo.Database,
			CollectionPrefix: cfg.Store.Mongo.CollectionPrefix,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := s.Close(closeCtx); err != nil {
				logger.Warn("mongo disconnect failed", zap.Error(err))
			}
		}, nil

	case config.StorePostgres:
		s, err := postgres.Open(ctx, postgres.Config{
			DSN:      cfg.Store.Postgres.DSN.Value(),
			MaxConns: cfg.Store.Postgres.MaxConns,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// openPublisher returns the configured notification channel.
func openPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case config.EventsLog:
		return events.NewLogPublisher(logger.Named("events")), nil

	case config.EventsNATS:
		n := cfg.Events.NATS
		return events.NewNATSPublisher(ctx, events.NATSConfig{
			URL:       n.URL,
			Subject:   n.Subject,
			JetStream: n.JetStream,
			Stream:    n.Stream,
		}, logger.Named("nats"))

	case config.EventsSQS:
		q := cfg.Events.SQS
		return events.OpenSQSPublisher(ctx, events.SQSConfig{
			QueueURL: q.QueueURL,
			Region:   q.Region,
			Endpoint: q.Endpoint,
		})
	}
	return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
}
