package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vendhub/vendhub/pkg/api"
	"github.com/vendhub/vendhub/pkg/audit"
	"github.com/vendhub/vendhub/pkg/authz"
	"github.com/vendhub/vendhub/pkg/cache"
	"github.com/vendhub/vendhub/pkg/config"
	"github.com/vendhub/vendhub/pkg/middleware"
	"github.com/vendhub/vendhub/pkg/observability"
	"github.com/vendhub/vendhub/pkg/session"
	"github.com/vendhub/vendhub/pkg/tenants"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(observability.ParseLogLevel(cfg.LogLevel), os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnLifetime)
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Info("connected to database")

	if cfg.MigrateOnStart {
		if err := authz.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("schema migrations applied")
	}

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	var redisClient *redis.Client
	if cfg.CacheEnabled || cfg.SessionStore == "redis" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		if cfg.RedisPassword != "" {
			opts.Password = cfg.RedisPassword
		}
		if cfg.RedisDB != 0 {
			opts.DB = cfg.RedisDB
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		logger.Info("connected to redis")
	}

	var authzCache cache.Cache = cache.NewNopCache()
	if cfg.CacheEnabled {
		rc := cache.NewRedisCacheFromClient(redisClient, logger)
		if metrics != nil {
			rc = rc.WithMetrics(metrics)
		}
		authzCache = rc
	}

	var sessions session.Store
	if cfg.SessionStore == "redis" {
		sessions = session.NewRedisStore(redisClient)
	} else {
		sessions = session.NewMemoryStore()
	}

	auditLogger, err := newAuditLogger(cfg, db)
	if err != nil {
		return err
	}
	defer auditLogger.Close()

	store := authz.NewSQLStore(db)
	resolvers := authz.NewResolvers(store, authzCache, cfg.AuthzCacheTTL, logger)
	loader := authz.NewContextLoader(store, resolvers, logger)
	if metrics != nil {
		resolvers = resolvers.WithMetrics(metrics)
		loader = loader.WithMetrics(metrics)
	}

	authorizer := middleware.NewSessionAuthorizer(sessions, loader, logger)
	guards := middleware.NewGuards(resolvers.Resources, auditLogger)
	if metrics != nil {
		guards = guards.WithMetrics(metrics)
	}

	members := tenants.NewService(db, authzCache, auditLogger, logger)

	server := api.NewServer(api.Options{
		Authorizer: authorizer,
		Guards:     guards,
		Resolvers:  resolvers,
		Cache:      authzCache,
		Members:    members,
		Audit:      auditLogger,
		Logger:     logger,
		Metrics:    metrics,
	})

	scheduler := cron.New()
	if cfg.SessionPurgeSchedule != "" {
		_, err := scheduler.AddFunc(cfg.SessionPurgeSchedule, func() {
			purged, err := sessions.PurgeExpired(context.Background())
			if err != nil {
				logger.WithError(err).Warn("session purge failed")
				return
			}
			if purged > 0 {
				if metrics != nil {
					metrics.SessionsPurgedTotal.Add(float64(purged))
				}
				logger.WithField("purged", purged).Info("expired sessions purged")
			}
		})
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	appServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		observability.RegisterMetricsEndpoint(metricsMux, registry)
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.ListenAddr).Info("starting server")
		if err := appServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			logger.WithField("addr", cfg.MetricsAddr).Info("starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx)
		}
		return appServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newAuditLogger(cfg *config.Config, db *sql.DB) (audit.Logger, error) {
	switch cfg.AuditBackend {
	case "db":
		return audit.NewDBLogger(db)
	case "file":
		return audit.NewFileLogger(audit.FileLoggerConfig{BasePath: cfg.AuditLogPath})
	default:
		return audit.NopLogger{}, nil
	}
}
