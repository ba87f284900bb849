// Package service implements lock accounting: per-token lock windows that are
// materialized lazily on read, the relock penalty, and the transfer guard.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lockmint/internal/lock/metrics"
	"lockmint/internal/lock/models"
	"lockmint/internal/lock/ports"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
	"lockmint/pkg/platform/audit"
	"lockmint/pkg/platform/sentinel"
	"lockmint/pkg/requestcontext"
)

// checkTransferChunk bounds how many lock records the transfer guard loads
// per store round trip.
const checkTransferChunk = 512

type Service struct {
	// mu serializes every public operation.
	mu sync.Mutex

	store          ports.Store
	registry       ports.TokenRegistry
	authorizer     ports.Authorizer
	uriProvider    ports.URIProvider
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	config         models.Config
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func WithURIProvider(provider ports.URIProvider) Option {
	return func(s *Service) {
		s.uriProvider = provider
	}
}

func New(store ports.Store, registry ports.TokenRegistry, authorizer ports.Authorizer, cfg models.Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lock store is required")
	}
	if registry == nil {
		return nil, errors.New("token registry is required")
	}
	if authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	cfg.DeploymentTime = models.Normalize(cfg.DeploymentTime)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		store:      store,
		registry:   registry,
		authorizer: authorizer,
		config:     cfg,
		logger:     slog.Default(),
		tracer:     otel.Tracer("lockmint/lock"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Config returns a copy of the current lock configuration.
func (s *Service) Config() models.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// ToggleLock flips the lock state of a token owned by caller and returns the
// lock info as of the toggle. The ownership check and the save run while the
// registry holds the token's ownership fixed, and the transfer guard reads the
// saved record under the same registry lock.
func (s *Service) ToggleLock(ctx context.Context, caller domain.Address, tokenID domain.TokenID) (info *models.LockInfo, err error) {
	ctx, span := s.startSpan(ctx, "lock.ToggleLock", tokenID)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireMinted(ctx, tokenID); err != nil {
		return nil, err
	}

	var current models.ResolvedRecord
	var next models.LockRecord
	now := requestcontext.Now(ctx)
	ownerResolved := false
	err = s.registry.WithOwnerLocked(ctx, tokenID, func(owner domain.Address) error {
		ownerResolved = true
		if owner != caller {
			return dErrors.Wrap(models.ErrNotOwnerOfToken, dErrors.CodeForbidden,
				fmt.Sprintf("caller %s does not own token %d", caller, tokenID))
		}

		var err error
		current, err = s.resolve(ctx, tokenID)
		if err != nil {
			return err
		}
		next = models.Toggle(current.Record, now, s.config.PenaltyRate)

		wasLocked := current.Record.IsLocked()
		if models.Resolve(&next, s.config.DeploymentTime).Record.IsLocked() == wasLocked {
			s.logger.ErrorContext(ctx, "lock toggle did not flip state",
				"token_id", tokenID,
				"locked", wasLocked,
			)
			return dErrors.Wrap(models.ErrLockStateNotFlipped, dErrors.CodeInvariantViolation,
				fmt.Sprintf("toggle of token %d did not change lock state", tokenID))
		}

		if err := s.store.Save(ctx, tokenID, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save lock record")
		}
		return nil
	})
	if err != nil {
		if !ownerResolved {
			return nil, dErrors.Wrap(err, dErrors.CodeDependency, "failed to resolve token owner")
		}
		return nil, err
	}

	var penalty uint64
	if next.IsLocked() {
		penalty = uint64((current.Record.TotalTime - next.TotalTime) / time.Second)
	}
	if s.metrics != nil {
		s.metrics.IncrementToggle(next.IsLocked())
		if penalty > 0 {
			s.metrics.AddPenaltySeconds(penalty)
		}
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventLockToggled,
		"token_id", tokenID,
		"owner", caller,
		"locked", next.IsLocked(),
		"total_time_seconds", int64(next.TotalTime/time.Second),
		"penalty_seconds", penalty,
	)

	return models.NewLockInfo(tokenID, models.KindExplicit, models.Materialize(next, now)), nil
}

// GetLockInfo returns the token's lock record materialized as of now. Nothing
// is persisted.
func (s *Service) GetLockInfo(ctx context.Context, tokenID domain.TokenID) (info *models.LockInfo, err error) {
	ctx, span := s.startSpan(ctx, "lock.GetLockInfo", tokenID)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireMinted(ctx, tokenID); err != nil {
		return nil, err
	}
	resolved, err := s.resolve(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	materialized := models.Materialize(resolved.Record, requestcontext.Now(ctx))
	return models.NewLockInfo(tokenID, resolved.Kind, materialized), nil
}

// IsTokenLocked reports whether a lock window is open for the token.
func (s *Service) IsTokenLocked(ctx context.Context, tokenID domain.TokenID) (bool, error) {
	start, err := s.GetLockStartTime(ctx, tokenID)
	if err != nil {
		return false, err
	}
	return !start.IsZero(), nil
}

// GetLockStartTime returns the start of the open lock window, or the zero
// time when the token is unlocked.
func (s *Service) GetLockStartTime(ctx context.Context, tokenID domain.TokenID) (time.Time, error) {
	info, err := s.GetLockInfo(ctx, tokenID)
	if err != nil {
		return time.Time{}, err
	}
	return info.StartTime, nil
}

// GetTokenTotalLockTime returns the cumulative lock time as of now.
func (s *Service) GetTokenTotalLockTime(ctx context.Context, tokenID domain.TokenID) (time.Duration, error) {
	info, err := s.GetLockInfo(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return info.TotalTime, nil
}

// CheckTransfer is the pre-transfer hook. It scans [startID, startID+quantity)
// and rejects the whole batch at the first locked token. Mints (from is the
// null address) are never blocked. The registry validates existence and
// ownership of the batch before calling the hook.
func (s *Service) CheckTransfer(ctx context.Context, from, to domain.Address, startID domain.TokenID, quantity uint64) (err error) {
	ctx, span := s.startSpan(ctx, "lock.CheckTransfer", startID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("quantity", int64(min(quantity, math.MaxInt64))))

	if from.IsZero() || quantity == 0 {
		return nil
	}
	if quantity-1 > math.MaxUint64-uint64(startID) {
		return dErrors.New(dErrors.CodeValidation, "transfer range overflows token ids")
	}

	// No s.mu here: the registry calls this hook while holding its own lock,
	// and ToggleLock holds s.mu while waiting for that lock. Records are read
	// atomically from the store and DeploymentTime never changes after New.
	ids := make([]domain.TokenID, 0, min(quantity, checkTransferChunk))
	for offset := uint64(0); offset < quantity; offset += uint64(len(ids)) {
		ids = ids[:min(quantity-offset, checkTransferChunk)]
		for i := range ids {
			ids[i] = startID + domain.TokenID(offset) + domain.TokenID(i)
		}
		if err := s.checkUnlocked(ctx, from, to, startID, quantity, ids); err != nil {
			return err
		}
	}
	return nil
}

// checkUnlocked rejects the batch at the first locked id in ids.
func (s *Service) checkUnlocked(ctx context.Context, from, to domain.Address, startID domain.TokenID, quantity uint64, ids []domain.TokenID) error {
	stored, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lock records")
	}

	for _, id := range ids {
		var record *models.LockRecord
		if r, ok := stored[id]; ok {
			record = &r
		}
		if !models.Resolve(record, s.config.DeploymentTime).Record.IsLocked() {
			continue
		}
		if s.metrics != nil {
			s.metrics.IncrementTransfersBlocked()
		}
		audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventTransferBlocked,
			"token_id", id,
			"from", from,
			"to", to,
			"start_id", startID,
			"quantity", quantity,
		)
		return dErrors.Wrap(&models.TokenLockedError{TokenID: id}, dErrors.CodeConflict,
			fmt.Sprintf("transfer blocked: token %d is locked", id))
	}
	return nil
}

// TokenURI delegates to the configured provider.
func (s *Service) TokenURI(ctx context.Context, tokenID domain.TokenID) (uri string, err error) {
	ctx, span := s.startSpan(ctx, "lock.TokenURI", tokenID)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	provider := s.uriProvider
	s.mu.Unlock()

	if provider == nil {
		return "", dErrors.Wrap(models.ErrNoTokenURIProviderSet, dErrors.CodePrecondition, "no token uri provider configured")
	}
	uri, err = provider.TokenURI(ctx, tokenID)
	if err != nil {
		var coded *dErrors.Error
		if errors.As(err, &coded) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeDependency, "token uri provider failed")
	}
	return uri, nil
}

// SetTokenURIProvider replaces the metadata provider. A nil provider unsets it.
func (s *Service) SetTokenURIProvider(ctx context.Context, caller domain.Address, provider ports.URIProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorizer.Require(ctx, domain.RoleLockManager, caller); err != nil {
		return err
	}
	s.uriProvider = provider
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventURIProviderSet,
		"manager", caller,
		"set", provider != nil,
	)
	return nil
}

// SetPenaltyRate changes the relock penalty. rate must lie in [0, Precision].
func (s *Service) SetPenaltyRate(ctx context.Context, caller domain.Address, rate uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorizer.Require(ctx, domain.RoleLockManager, caller); err != nil {
		return err
	}
	if err := models.ValidatePenaltyRate(rate); err != nil {
		return err
	}
	previous := s.config.PenaltyRate
	s.config.PenaltyRate = rate
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventPenaltyRateSet,
		"manager", caller,
		"previous_rate", previous,
		"rate", rate,
	)
	return nil
}

func (s *Service) requireMinted(ctx context.Context, tokenID domain.TokenID) error {
	exists, err := s.registry.Exists(ctx, tokenID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDependency, "failed to check token existence")
	}
	if !exists {
		return dErrors.Wrap(models.ErrTokenNotMinted, dErrors.CodeNotFound,
			fmt.Sprintf("token %d not minted", tokenID))
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, tokenID domain.TokenID) (models.ResolvedRecord, error) {
	stored, err := s.store.Get(ctx, tokenID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return models.ResolvedRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lock record")
		}
		stored = nil
	}
	return models.Resolve(stored, s.config.DeploymentTime), nil
}

func (s *Service) startSpan(ctx context.Context, name string, tokenID domain.TokenID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("token_id", tokenID.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
