package commands

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/teranos/hireflow/am"
	"github.com/teranos/hireflow/db"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/internal/httpclient"
	"github.com/teranos/hireflow/jobpost"
	"github.com/teranos/hireflow/jobpost/postgres"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/notify"
	"github.com/teranos/hireflow/pulse/schedule"
	"github.com/teranos/hireflow/telemetry"
	"github.com/teranos/hireflow/workflow"
)

// jobStore is what the CLI needs from either job post store
type jobStore interface {
	workflow.Store
	workflow.AuditLog
	Create(ctx context.Context, post *workflow.JobPost) error
	List(ctx context.Context, f workflow.ListFilter) ([]*workflow.JobPost, error)
}

var (
	_ jobStore = (*jobpost.Store)(nil)
	_ jobStore = (*postgres.Store)(nil)
)

// backend is the wired engine and its collaborators for one command run
type backend struct {
	cfg    *am.Config
	store  jobStore
	engine *workflow.Engine
	events *notify.Broadcaster
	lease  schedule.Lease
	log    *zap.SugaredLogger

	closers []func() error
}

// openStore opens the configured store with migrations applied
func openStore(ctx context.Context, cfg *am.Config, l *zap.SugaredLogger) (jobStore, func() error, error) {
	switch cfg.Database.Driver {
	case am.DriverPostgres:
		s, err := postgres.New(ctx, cfg.Database.DSN, l)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, func() error { s.Close(); return nil }, nil

	case am.DriverSQLite, "":
		path := cfg.GetDatabasePath()
		database, err := db.OpenWithMigrations(path, l)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to open database at %s", path)
		}
		return jobpost.NewStore(database, l), database.Close, nil
	}
	return nil, nil, errors.Newf("unsupported database driver %q", cfg.Database.Driver)
}

// openBackend wires the store, engine, event delivery and scheduler lease from cfg.
// extra emitters receive every event after the configured ones.
func openBackend(ctx context.Context, cfg *am.Config, extra ...workflow.Emitter) (*backend, error) {
	l := logger.Logger
	b := &backend{cfg: cfg, events: notify.NewBroadcaster(notify.DefaultSubscriberBuffer), log: l}

	store, closeStore, err := openStore(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	b.store = store
	b.closers = append(b.closers, closeStore)

	emitters := notify.Multi{notify.NewLogEmitter(l), b.events}
	if cfg.Notify.AMQPURL != "" {
		amqpEmitter, err := notify.DialAMQP(cfg.Notify.AMQPURL, cfg.Notify.Exchange, l)
		if err != nil {
			b.Close()
			return nil, err
		}
		emitters = append(emitters, amqpEmitter)
		b.closers = append(b.closers, amqpEmitter.Close)
	}
	if cfg.Notify.WebhookURL != "" {
		webhook, err := notify.NewWebhookEmitter(httpclient.New(httpclient.Options{}), cfg.Notify.WebhookURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		emitters = append(emitters, webhook)
	}
	emitters = append(emitters, extra...)

	providers, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		b.Close()
		return nil, err
	}
	if providers != nil {
		providers.Install()
		b.closers = append(b.closers, func() error {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return providers.Shutdown(flushCtx)
		})
		if l != nil {
			l.Infow("Exporting telemetry", "endpoint", cfg.Telemetry.OTLPEndpoint)
		}
	}

	b.engine = workflow.NewEngine(store, store,
		workflow.WithEmitter(emitters),
		workflow.WithLogger(l),
		workflow.WithBulkLimits(cfg.Bulk.MaxItems, cfg.Bulk.Concurrency),
		workflow.WithTelemetry(otel.GetTracerProvider(), otel.GetMeterProvider()),
	)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			b.Close()
			return nil, errors.Wrapf(err, "failed to reach redis at %s", cfg.Redis.Addr)
		}
		b.lease = schedule.NewRedisLease(client, schedule.DefaultLeaseKey)
		b.closers = append(b.closers, client.Close)
	}

	return b, nil
}

// newTicker builds the automation scheduler over the backend
func (b *backend) newTicker(cfg schedule.TickerConfig) *schedule.Ticker {
	return schedule.NewTicker(b.engine, b.store, b.lease, cfg, b.log)
}

// Close releases everything openBackend acquired, newest first
func (b *backend) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	b.closers = nil
	return err
}

// loadConfig loads and validates configuration, honoring --config
func loadConfig() (*am.Config, error) {
	var (
		cfg *am.Config
		err error
	)
	if configPath != "" {
		cfg, err = am.LoadFromFile(configPath)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}
