package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	allowancehandler "lockmint/internal/allowance/handler"
	allowancemetrics "lockmint/internal/allowance/metrics"
	allowancemodels "lockmint/internal/allowance/models"
	allowanceports "lockmint/internal/allowance/ports"
	allowanceservice "lockmint/internal/allowance/service"
	allowancestore "lockmint/internal/allowance/store"
	"lockmint/internal/authz"
	authzhandler "lockmint/internal/authz/handler"
	jwttoken "lockmint/internal/jwt_token"
	lockhandler "lockmint/internal/lock/handler"
	lockmetrics "lockmint/internal/lock/metrics"
	lockmodels "lockmint/internal/lock/models"
	lockports "lockmint/internal/lock/ports"
	lockservice "lockmint/internal/lock/service"
	lockstore "lockmint/internal/lock/store"
	"lockmint/internal/merkle"
	"lockmint/internal/payment"
	paymenthandler "lockmint/internal/payment/handler"
	"lockmint/internal/platform/config"
	"lockmint/internal/registry"
	httptransport "lockmint/internal/transport/http"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/audit"
	"lockmint/pkg/platform/audit/publishers/kafka"
	auditpg "lockmint/pkg/platform/audit/store/postgres"
	"lockmint/pkg/platform/audit/worker"
)

type app struct {
	handlers []httptransport.RouteRegistrar
	relay    *worker.OutboxRelay
	close    func()
}

func buildApp(ctx context.Context, cfg config.Server, log *slog.Logger, reg prometheus.Registerer, in *infra) (*app, error) {
	if cfg.AdminAddress.IsZero() {
		return nil, errors.New("ADMIN_ADDRESS is required")
	}
	if cfg.Sale.LedgerAddress.IsZero() {
		return nil, errors.New("LEDGER_ADDRESS is required")
	}

	a := &app{close: func() {}}
	publisher, err := a.buildAudit(ctx, cfg, log, in)
	if err != nil {
		return nil, err
	}

	roles := authz.New(cfg.AdminAddress, authz.WithLogger(log), authz.WithAuditPublisher(publisher))
	grants := []struct {
		role    domain.Role
		account domain.Address
	}{
		{domain.RoleMinter, cfg.Sale.LedgerAddress},
		{domain.RoleLockManager, cfg.AdminAddress},
		{domain.RoleSaleManager, cfg.AdminAddress},
	}
	for _, g := range grants {
		if err := roles.Grant(ctx, cfg.AdminAddress, g.role, g.account); err != nil {
			return nil, fmt.Errorf("grant %s: %w", g.role, err)
		}
	}

	tokens, err := registry.New(roles, registry.WithLogger(log), registry.WithAuditPublisher(publisher))
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	locks, err := buildLockService(ctx, cfg, log, reg, in, tokens, roles, publisher)
	if err != nil {
		return nil, err
	}
	tokens.SetTransferHook(locks)

	payments := payment.NewDirectory(payment.NewAsset(cfg.Sale.PaymentAsset))
	ledger, err := buildLedger(ctx, cfg, log, reg, in, tokens, payments, roles, publisher)
	if err != nil {
		return nil, err
	}

	jwtValidator := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience),
	)
	a.handlers = []httptransport.RouteRegistrar{
		lockhandler.New(locks, tokens, jwtValidator, log),
		allowancehandler.New(ledger, jwtValidator, log),
		paymenthandler.New(payments, roles, jwtValidator, log),
		authzhandler.New(roles, jwtValidator, log),
	}
	return a, nil
}

// buildAudit picks the audit sink. With Postgres, events go to the outbox and
// are relayed to Kafka when brokers are configured. Without any sink, audit
// events are only logged.
func (a *app) buildAudit(ctx context.Context, cfg config.Server, log *slog.Logger, in *infra) (audit.Publisher, error) {
	var stream *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("create audit publisher: %w", err)
		}
		if err := p.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		stream = p
		a.close = p.Close
	}

	if in.db != nil {
		outbox := auditpg.New(in.db)
		if err := outbox.Migrate(ctx); err != nil {
			return nil, err
		}
		if stream != nil {
			a.relay = worker.NewOutboxRelay(outbox, stream, log)
		}
		return outbox, nil
	}
	if stream != nil {
		return stream, nil
	}
	return nil, nil
}

func buildLockService(
	ctx context.Context,
	cfg config.Server,
	log *slog.Logger,
	reg prometheus.Registerer,
	in *infra,
	tokens *registry.Registry,
	roles *authz.Table,
	publisher audit.Publisher,
) (*lockservice.Service, error) {
	var store lockports.Store
	switch {
	case in.redis != nil:
		store = lockstore.NewRedis(in.redis.Client)
	case in.db != nil:
		pg := lockstore.NewPostgres(in.db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		store = pg
	default:
		store = lockstore.NewInMemory()
	}

	opts := []lockservice.Option{
		lockservice.WithLogger(log),
		lockservice.WithAuditPublisher(publisher),
		lockservice.WithMetrics(lockmetrics.New(reg)),
	}
	if cfg.Lock.BaseTokenURI != "" {
		opts = append(opts, lockservice.WithURIProvider(registry.NewBaseURIProvider(tokens, cfg.Lock.BaseTokenURI)))
	}
	svc, err := lockservice.New(store, tokens, roles, lockmodels.Config{
		DeploymentTime: cfg.Lock.DeploymentTime,
		PenaltyRate:    cfg.Lock.PenaltyRate,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("create lock service: %w", err)
	}
	return svc, nil
}

func buildLedger(
	ctx context.Context,
	cfg config.Server,
	log *slog.Logger,
	reg prometheus.Registerer,
	in *infra,
	tokens *registry.Registry,
	payments *payment.Directory,
	roles *authz.Table,
	publisher audit.Publisher,
) (*allowanceservice.Service, error) {
	var root merkle.Hash
	if cfg.Sale.MembershipRoot != "" {
		parsed, err := merkle.ParseHash(cfg.Sale.MembershipRoot)
		if err != nil {
			return nil, fmt.Errorf("MEMBERSHIP_ROOT: %w", err)
		}
		root = parsed
	}

	var store allowanceports.Store
	if in.db != nil {
		pg := allowancestore.NewPostgres(in.db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		store = pg
	} else {
		store = allowancestore.NewInMemory()
	}

	svc, err := allowanceservice.New(store, tokens, merkle.Verifier{}, payments, roles, allowancemodels.Config{
		DeploymentTime: cfg.Lock.DeploymentTime,
		LedgerAddress:  cfg.Sale.LedgerAddress,
		Settings: allowancemodels.Settings{
			DailySupply:     cfg.Sale.DailySupply,
			PricePerUnit:    cfg.Sale.PricePerUnit,
			PaymentReceiver: cfg.Sale.PaymentReceiver,
			PaymentAsset:    cfg.Sale.PaymentAsset,
			MembershipRoot:  root,
		},
	},
		allowanceservice.WithLogger(log),
		allowanceservice.WithAuditPublisher(publisher),
		allowanceservice.WithMetrics(allowancemetrics.New(reg)),
	)
	if err != nil {
		return nil, fmt.Errorf("create allowance ledger: %w", err)
	}
	return svc, nil
}
