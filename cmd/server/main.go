package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"lockmint/internal/platform/config"
	"lockmint/internal/platform/httpserver"
	"lockmint/internal/platform/logger"
	"lockmint/internal/platform/metrics"
	redisclient "lockmint/internal/platform/redis"
	httptransport "lockmint/internal/transport/http"
)

// main wires dependencies and runs the API and metrics servers until a
// shutdown signal arrives. Business logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backing, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backing.Close()

	application, err := buildApp(ctx, cfg, log, reg, backing)
	if err != nil {
		return err
	}
	defer application.close()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:       log,
		Metrics:      metrics.New(reg),
		HealthChecks: backing.healthChecks(),
	}, application.handlers...)

	apiServer := httpserver.New("api", cfg.Addr, router, cfg.HTTP, log)
	metricsServer := httpserver.New("metrics", cfg.MetricsAddr, httptransport.NewMetricsRouter(reg), cfg.HTTP, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting lockmint", "addr", cfg.Addr, "deployment_time", cfg.Lock.DeploymentTime)
		return apiServer.Run(gctx)
	})
	g.Go(func() error {
		return metricsServer.Run(gctx)
	})
	if application.relay != nil {
		g.Go(func() error {
			if err := application.relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// infra holds the optional backing services. Nil fields are not configured.
type infra struct {
	db    *sql.DB
	redis *redisclient.Client
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		in.db = db
		log.Info("postgres connected")
	}

	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	if client != nil {
		in.redis = client
		log.Info("redis connected")
	}
	return in, nil
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := make(map[string]httptransport.HealthCheck)
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}

func (in *infra) Close() {
	if in.db != nil {
		_ = in.db.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
}
