package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alem-hub/advising-hub/config"
	"github.com/alem-hub/advising-hub/internal/application/session"
	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/infrastructure/datasource"
	"github.com/alem-hub/advising-hub/internal/infrastructure/messaging"
	"github.com/alem-hub/advising-hub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/advising-hub/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/advising-hub/internal/infrastructure/scheduler"
	httpserver "github.com/alem-hub/advising-hub/internal/interface/http"
	"github.com/alem-hub/advising-hub/internal/interface/http/handlers"
	"github.com/alem-hub/advising-hub/pkg/logger"
	"github.com/alem-hub/advising-hub/pkg/timeutil"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.HTTP.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override HTTP_PORT")
	return cmd
}

func newLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	return logger.New(opts).With(logger.String("app", cfg.App.Name), logger.String("env", string(cfg.App.Environment)))
}

func serve(ctx context.Context, cfg *config.Config) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Logging and views
	// ─────────────────────────────────────────────────────────────────────────
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	catalog, err := config.LoadViews(cfg.ViewsFile)
	if err != nil {
		return fmt.Errorf("load views: %w", err)
	}
	log.Info("starting advising hub",
		logger.String("version", Version),
		logger.Int("views", len(catalog.Views)),
	)

	clock := timeutil.NewSystemClock(cfg.App.Timezone)
	health := handlers.NewCompositeHealthChecker(Version)
	var factoryOpts []datasource.FactoryOption
	var sessionOpts []session.Option

	// ─────────────────────────────────────────────────────────────────────────
	// 2. PostgreSQL (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL != "" {
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Database.URL
		pgCfg.MaxConns = cfg.Database.MaxConns
		pgCfg.MinConns = cfg.Database.MinConns
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer conn.Close()

		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database ready")

		repo := postgres.NewRosterRepository(conn)
		factoryOpts = append(factoryOpts, datasource.WithRosterStore(repo))
		sessionOpts = append(sessionOpts,
			session.WithBulkHandler(shared.BulkActionNotifyAdvisor, session.NotifyAdvisor(repo, log.Named("bulk"))))
		health.AddDetailedCheck("postgres", conn.Health)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Redis (optional): dataset cache and cross-instance events
	// ─────────────────────────────────────────────────────────────────────────
	var bus interface {
		shared.EventBus
		Close() error
	}

	if !cfg.Redis.Disabled {
		rc := redis.DefaultConfig()
		rc.Host = cfg.Redis.Host
		rc.Port = cfg.Redis.Port
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		rc.PoolSize = cfg.Redis.PoolSize
		rc.DialTimeout = cfg.Redis.DialTimeout
		rc.ReadTimeout = cfg.Redis.ReadTimeout
		rc.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := redis.NewCache(rc)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() { _ = cache.Close() }()

		factoryOpts = append(factoryOpts, datasource.WithDatasetCache(redis.NewDatasetCache(cache), cfg.Redis.DatasetTTL))
		health.AddCheck("redis", handlers.NewPingCheck(cache))

		rbus, err := messaging.NewClusterBus(messaging.ClusterBusConfig{
			Transport: messaging.NewRedisTransport(cache),
			Channel:   messaging.EventsChannel,
			Local:     messaging.DefaultLocalBusConfig(),
			Logger:    log,
		})
		if err != nil {
			return fmt.Errorf("start event bus: %w", err)
		}
		bus = rbus
		log.Info("redis ready", logger.String("address", rc.Addr()))
	} else {
		cfgBus := messaging.DefaultLocalBusConfig()
		cfgBus.Logger = log
		bus = messaging.NewLocalBus(cfgBus)
	}
	defer func() { _ = bus.Close() }()

	if err := bus.SubscribeAll(messaging.AuditHandler(log.Named("audit"))); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Sessions
	// ─────────────────────────────────────────────────────────────────────────
	sources := datasource.NewFactory(cfg.Remote, log, factoryOpts...)
	sessionOpts = append(sessionOpts,
		session.WithEventPublisher(bus),
		session.WithClock(clock),
		session.WithLoadTimeout(cfg.Session.LoadTimeout),
	)
	mgr := session.NewManager(catalog, sources, cfg.Session, log, sessionOpts...)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Housekeeping
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{Logger: log, Clock: clock})
	if err := sched.Register(scheduler.ReapSessions(mgr, log), scheduler.Every(cfg.Session.ReapInterval)); err != nil {
		return err
	}
	if !cfg.Redis.Disabled {
		warm := scheduler.WarmDatasets(catalog.Views, sources, log)
		if err := sched.Register(warm, scheduler.Every(cfg.Redis.DatasetTTL/2)); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP
	// ─────────────────────────────────────────────────────────────────────────
	srv := httpserver.NewServer(cfg.HTTP, httpserver.Dependencies{
		Sessions:        mgr,
		Recommendations: datasource.LoadRecommendations,
		Clock:           clock,
		HealthChecker:   health,
		Logger:          log,
		Version:         Version,
	})
	errCh := srv.Serve()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server failed", logger.Err(err))
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
	}

	_ = sched.Stop()
	mgr.Shutdown()

	log.Info("shutdown completed")
	return runErr
}
