// Package service implements the allowance ledger: daily-capped purchases of
// mint allowance gated by a membership proof, and redemption of that allowance
// against the ownership registry.
//
// Purchase and Redeem commit their checks and ledger effects in one store
// transaction and only then call the payment asset or the minter. Those
// collaborators cannot join the store transaction, so a failed interaction is
// undone by a second transaction that reverts the committed effects.
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

	"lockmint/internal/allowance/metrics"
	"lockmint/internal/allowance/models"
	"lockmint/internal/allowance/ports"
	"lockmint/internal/merkle"
	"lockmint/internal/payment"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
	"lockmint/pkg/platform/audit"
	"lockmint/pkg/platform/sentinel"
	"lockmint/pkg/requestcontext"
)

type Service struct {
	// mu serializes every public operation.
	mu sync.Mutex

	store          ports.Store
	minter         ports.Minter
	verifier       ports.ProofVerifier
	payments       ports.PaymentDirectory
	authorizer     ports.Authorizer
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer

	deploymentTime time.Time
	ledgerAddress  domain.Address
	defaults       models.Settings
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

func New(
	store ports.Store,
	minter ports.Minter,
	verifier ports.ProofVerifier,
	payments ports.PaymentDirectory,
	authorizer ports.Authorizer,
	cfg models.Config,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("allowance store is required")
	}
	if minter == nil {
		return nil, errors.New("minter is required")
	}
	if verifier == nil {
		return nil, errors.New("proof verifier is required")
	}
	if payments == nil {
		return nil, errors.New("payment directory is required")
	}
	if authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	cfg.DeploymentTime = cfg.DeploymentTime.UTC().Truncate(time.Second)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		store:          store,
		minter:         minter,
		verifier:       verifier,
		payments:       payments,
		authorizer:     authorizer,
		logger:         slog.Default(),
		tracer:         otel.Tracer("lockmint/allowance"),
		deploymentTime: cfg.DeploymentTime,
		ledgerAddress:  cfg.LedgerAddress,
		defaults:       cfg.Settings,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Purchase buys amount units of mint allowance for recipient, paid by buyer.
// Checks run in a fixed order: capacity, zero amount, membership proof.
func (s *Service) Purchase(ctx context.Context, buyer, recipient domain.Address, amount uint64, proof []merkle.Hash) (receipt *models.PurchaseReceipt, err error) {
	ctx, span := s.startSpan(ctx, "allowance.Purchase", recipient)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("amount", clampInt64(amount)))

	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	var (
		rejectReason string
		asset        payment.Transferer
		settings     models.Settings
		cost         uint64
	)

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		state, err := s.loadState(ctx)
		if err != nil {
			return err
		}
		settings = state.Settings

		available := s.available(state, now)
		if amount > available {
			rejectReason = "capacity"
			return dErrors.Wrap(models.ErrNoPurchasableTokens, dErrors.CodeValidation,
				fmt.Sprintf("requested %d units, %d purchasable", amount, available))
		}
		if amount == 0 {
			rejectReason = "zero_amount"
			return dErrors.Wrap(models.ErrZeroAmountNotAllowed, dErrors.CodeValidation, "purchase amount must be positive")
		}
		if !s.verifier.Verify(proof, settings.MembershipRoot, recipient) {
			rejectReason = "proof"
			return dErrors.Wrap(models.ErrReceiverNotWhitelisted, dErrors.CodeForbidden,
				fmt.Sprintf("receiver %s is not on the allowlist", recipient))
		}
		cost, err = models.Cost(settings.PricePerUnit, amount)
		if err != nil {
			rejectReason = "overflow"
			return err
		}
		if settings.PaymentReceiver.IsZero() {
			rejectReason = "config"
			return dErrors.New(dErrors.CodePrecondition, "payment receiver is not configured")
		}
		asset, err = s.payments.Resolve(settings.PaymentAsset)
		if err != nil {
			rejectReason = "config"
			return dErrors.Wrap(err, dErrors.CodePrecondition,
				fmt.Sprintf("payment asset %q is not available", settings.PaymentAsset))
		}

		purchased, err := models.CheckedAdd(state.PurchasedTotal, amount)
		if err != nil {
			return err
		}
		current, err := s.store.GetAllowance(ctx, recipient)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allowance")
		}
		allowance, err := models.CheckedAdd(current, amount)
		if err != nil {
			return err
		}
		state.PurchasedTotal = purchased
		if err := s.store.SaveState(ctx, *state); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save ledger state")
		}
		if err := s.store.SetAllowance(ctx, recipient, allowance); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save allowance")
		}
		receipt = &models.PurchaseReceipt{
			Buyer:          buyer,
			Recipient:      recipient,
			Amount:         amount,
			Cost:           cost,
			Allowance:      allowance,
			PurchasedTotal: purchased,
		}
		return nil
	})
	if err != nil {
		// Emitted after rollback.
		if rejectReason == "proof" {
			audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventProofRejected,
				"buyer", buyer,
				"recipient", recipient,
				"amount", amount,
			)
		}
		s.observeRejection("purchase", rejectReason)
		return nil, err
	}

	if err := asset.TransferFrom(ctx, s.ledgerAddress, buyer, settings.PaymentReceiver, cost); err != nil {
		s.observeRejection("purchase", "payment")
		cause := dErrors.Wrap(err, dErrors.CodeDependency, "payment transfer failed")
		return nil, s.revert(ctx, "purchase", recipient, amount, cause, func(ctx context.Context) error {
			return s.unpurchase(ctx, recipient, amount)
		})
	}

	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventAllowancePurchased,
		"buyer", buyer,
		"recipient", recipient,
		"amount", amount,
		"cost", cost,
		"asset", settings.PaymentAsset,
		"purchased_total", receipt.PurchasedTotal,
	)
	if s.metrics != nil {
		s.metrics.ObservePurchase(settings.PaymentAsset, amount, cost)
	}
	return receipt, nil
}

// Redeem converts amount units of recipient's allowance into freshly minted
// tokens owned by recipient.
func (s *Service) Redeem(ctx context.Context, caller, recipient domain.Address, amount uint64) (receipt *models.RedeemReceipt, err error) {
	ctx, span := s.startSpan(ctx, "allowance.Redeem", recipient)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("amount", clampInt64(amount)))

	s.mu.Lock()
	defer s.mu.Unlock()

	var rejectReason string
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.GetAllowance(ctx, recipient)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allowance")
		}
		if amount > current {
			rejectReason = "allowance"
			return dErrors.Wrap(models.ErrNotEnoughMintableTokens, dErrors.CodeValidation,
				fmt.Sprintf("requested %d units, allowance is %d", amount, current))
		}
		if amount == 0 {
			rejectReason = "zero_amount"
			return dErrors.Wrap(models.ErrZeroAmountNotAllowed, dErrors.CodeValidation, "redeem amount must be positive")
		}

		remaining := current - amount
		if err := s.store.SetAllowance(ctx, recipient, remaining); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save allowance")
		}
		receipt = &models.RedeemReceipt{
			Recipient: recipient,
			Amount:    amount,
			Allowance: remaining,
		}
		return nil
	})
	if err != nil {
		s.observeRejection("redeem", rejectReason)
		return nil, err
	}

	firstID, err := s.minter.Mint(ctx, s.ledgerAddress, recipient, amount)
	if err != nil {
		s.observeRejection("redeem", "mint")
		cause := dErrors.Wrap(err, dErrors.CodeDependency, "mint failed")
		return nil, s.revert(ctx, "redeem", recipient, amount, cause, func(ctx context.Context) error {
			return s.unredeem(ctx, recipient, amount)
		})
	}
	receipt.FirstTokenID = firstID

	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventAllowanceRedeemed,
		"caller", caller,
		"recipient", recipient,
		"amount", amount,
		"first_token_id", firstID,
		"allowance", receipt.Allowance,
	)
	if s.metrics != nil {
		s.metrics.ObserveRedeem(amount)
	}
	return receipt, nil
}

// revert undoes the committed effects of op after the interaction that
// followed them failed, and returns cause. If the revert itself fails the
// ledger and the collaborator disagree; that is logged and audited for
// reconciliation and reported as an internal error wrapping both failures.
func (s *Service) revert(ctx context.Context, op string, recipient domain.Address, amount uint64, cause error, undo func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.RunInTx(ctx, undo); err != nil {
		s.logger.ErrorContext(ctx, "ledger revert failed",
			"op", op,
			"recipient", recipient,
			"amount", amount,
			"cause", cause.Error(),
			"error", err.Error(),
		)
		audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventLedgerRevertFailed,
			"op", op,
			"recipient", recipient,
			"amount", amount,
			"cause", cause.Error(),
		)
		return dErrors.Wrap(errors.Join(cause, err), dErrors.CodeInternal,
			fmt.Sprintf("%s failed and its ledger effects could not be reverted", op))
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventLedgerReverted,
		"op", op,
		"recipient", recipient,
		"amount", amount,
		"cause", cause.Error(),
	)
	return cause
}

// unpurchase subtracts a committed purchase from purchased_total and the
// recipient's allowance. Deltas keep it correct if other writers committed in
// between.
func (s *Service) unpurchase(ctx context.Context, recipient domain.Address, amount uint64) error {
	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}
	current, err := s.store.GetAllowance(ctx, recipient)
	if err != nil {
		return err
	}
	if state.PurchasedTotal < amount || current < amount {
		return dErrors.New(dErrors.CodeInvariantViolation, "committed purchase is no longer present in the ledger")
	}
	state.PurchasedTotal -= amount
	if err := s.store.SaveState(ctx, *state); err != nil {
		return err
	}
	return s.store.SetAllowance(ctx, recipient, current-amount)
}

// unredeem gives a committed redemption back to the recipient's allowance.
func (s *Service) unredeem(ctx context.Context, recipient domain.Address, amount uint64) error {
	current, err := s.store.GetAllowance(ctx, recipient)
	if err != nil {
		return err
	}
	restored, err := models.CheckedAdd(current, amount)
	if err != nil {
		return err
	}
	return s.store.SetAllowance(ctx, recipient, restored)
}

// GetNumOfPurchasableTokens returns the units still purchasable as of now.
func (s *Service) GetNumOfPurchasableTokens(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return 0, err
	}
	return s.available(state, requestcontext.Now(ctx)), nil
}

// AllowanceOf returns the unredeemed allowance of account.
func (s *Service) AllowanceOf(ctx context.Context, account domain.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount, err := s.store.GetAllowance(ctx, account)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allowance")
	}
	return amount, nil
}

func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	days := models.ElapsedDays(s.deploymentTime, requestcontext.Now(ctx))
	capacity := models.Capacity(days, state.Settings.DailySupply)
	return &models.Stats{
		ElapsedDays:    days,
		Capacity:       capacity,
		PurchasedTotal: state.PurchasedTotal,
		Available:      models.Available(capacity, state.PurchasedTotal),
		Settings:       state.Settings,
	}, nil
}

func (s *Service) SetPricePerUnit(ctx context.Context, caller domain.Address, price uint64) error {
	return s.updateSettings(ctx, caller, "price_per_unit", price, func(st *models.Settings) error {
		st.PricePerUnit = price
		return nil
	})
}

func (s *Service) SetDailySupply(ctx context.Context, caller domain.Address, supply uint64) error {
	return s.updateSettings(ctx, caller, "daily_supply", supply, func(st *models.Settings) error {
		st.DailySupply = supply
		return nil
	})
}

func (s *Service) SetPaymentReceiver(ctx context.Context, caller domain.Address, receiver domain.Address) error {
	return s.updateSettings(ctx, caller, "payment_receiver", receiver, func(st *models.Settings) error {
		if receiver.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "payment receiver cannot be the null address")
		}
		st.PaymentReceiver = receiver
		return nil
	})
}

// SetPaymentAsset switches the payment asset. The reference must resolve in
// the payment directory.
func (s *Service) SetPaymentAsset(ctx context.Context, caller domain.Address, ref string) error {
	return s.updateSettings(ctx, caller, "payment_asset", ref, func(st *models.Settings) error {
		if ref == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "payment asset cannot be empty")
		}
		if _, err := s.payments.Resolve(ref); err != nil {
			return err
		}
		st.PaymentAsset = ref
		return nil
	})
}

func (s *Service) SetMembershipRoot(ctx context.Context, caller domain.Address, root merkle.Hash) error {
	return s.updateSettings(ctx, caller, "membership_root", root, func(st *models.Settings) error {
		st.MembershipRoot = root
		return nil
	})
}

func (s *Service) updateSettings(ctx context.Context, caller domain.Address, field string, value any, apply func(*models.Settings) error) (err error) {
	ctx, span := s.tracer.Start(ctx, "allowance.UpdateSettings", trace.WithAttributes(
		attribute.String("field", field),
	))
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorizer.Require(ctx, domain.RoleSaleManager, caller); err != nil {
		return err
	}
	return s.store.RunInTx(ctx, func(ctx context.Context) error {
		state, err := s.loadState(ctx)
		if err != nil {
			return err
		}
		if err := apply(&state.Settings); err != nil {
			return err
		}
		if err := s.store.SaveState(ctx, *state); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save ledger state")
		}
		audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventSaleConfigChanged,
			"manager", caller,
			"field", field,
			"value", fmt.Sprint(value),
		)
		return nil
	})
}

// loadState returns the persisted state, or the configured defaults before
// the first write.
func (s *Service) loadState(ctx context.Context) (*models.State, error) {
	state, err := s.store.GetState(ctx)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return &models.State{Settings: s.defaults}, nil
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ledger state")
}

func (s *Service) available(state *models.State, now time.Time) uint64 {
	days := models.ElapsedDays(s.deploymentTime, now)
	return models.Available(models.Capacity(days, state.Settings.DailySupply), state.PurchasedTotal)
}

func (s *Service) observeRejection(op, reason string) {
	if s.metrics == nil || reason == "" {
		return
	}
	s.metrics.IncrementRejection(op, reason)
}

func (s *Service) startSpan(ctx context.Context, name string, account domain.Address) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("account", account.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func clampInt64(v uint64) int64 {
	return int64(min(v, math.MaxInt64))
}
