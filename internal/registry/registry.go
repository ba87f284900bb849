// Package registry is an in-memory ownership registry with sequential token
// ids and batch mints. Every transfer runs the pre-transfer hook over the
// whole batch before any ownership changes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
	"lockmint/pkg/platform/audit"
)

var (
	ErrTokenNotFound  = errors.New("token not found")
	ErrNotTokenOwner  = errors.New("transfer from incorrect owner")
	ErrNotApproved    = errors.New("caller is not owner nor approved")
	ErrZeroQuantity   = errors.New("quantity must be positive")
	ErrMintToZero     = errors.New("mint to the null address")
	ErrTransferToZero = errors.New("transfer to the null address")
)

// TransferHook is called before ownership of [startID, startID+quantity)
// moves. from is the null address for mints.
type TransferHook interface {
	CheckTransfer(ctx context.Context, from, to domain.Address, startID domain.TokenID, quantity uint64) error
}

// Authorizer checks role membership.
type Authorizer interface {
	Require(ctx context.Context, role domain.Role, account domain.Address) error
}

type Registry struct {
	mu             sync.RWMutex
	owners         map[domain.TokenID]domain.Address
	operators      map[domain.Address]map[domain.Address]bool
	nextID         domain.TokenID
	hook           TransferHook
	authorizer     Authorizer
	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(r *Registry) {
		r.auditPublisher = publisher
	}
}

func WithTransferHook(hook TransferHook) Option {
	return func(r *Registry) {
		r.hook = hook
	}
}

func New(authorizer Authorizer, opts ...Option) (*Registry, error) {
	if authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	r := &Registry{
		owners:     make(map[domain.TokenID]domain.Address),
		operators:  make(map[domain.Address]map[domain.Address]bool),
		authorizer: authorizer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// SetTransferHook installs the guard after construction. The lock service
// depends on the registry, so the hook is usually wired second.
func (r *Registry) SetTransferHook(hook TransferHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
}

func (r *Registry) Exists(_ context.Context, tokenID domain.TokenID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.owners[tokenID]
	return ok, nil
}

func (r *Registry) OwnerOf(_ context.Context, tokenID domain.TokenID) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[tokenID]
	if !ok {
		return domain.NullAddress, dErrors.Wrap(ErrTokenNotFound, dErrors.CodeNotFound,
			fmt.Sprintf("token %d does not exist", tokenID))
	}
	return owner, nil
}

// WithOwnerLocked runs fn with the current owner of tokenID while holding the
// registry write lock. No transfer of the token can start or finish while fn
// runs. fn must not call back into the registry.
func (r *Registry) WithOwnerLocked(_ context.Context, tokenID domain.TokenID, fn func(owner domain.Address) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[tokenID]
	if !ok {
		return dErrors.Wrap(ErrTokenNotFound, dErrors.CodeNotFound,
			fmt.Sprintf("token %d does not exist", tokenID))
	}
	return fn(owner)
}

// TotalMinted returns the number of tokens minted so far.
func (r *Registry) TotalMinted() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(r.nextID)
}

// Mint creates quantity tokens for to with consecutive ids and returns the
// first id. minter must hold RoleMinter.
func (r *Registry) Mint(ctx context.Context, minter, to domain.Address, quantity uint64) (domain.TokenID, error) {
	if err := r.authorizer.Require(ctx, domain.RoleMinter, minter); err != nil {
		return 0, err
	}
	if to.IsZero() {
		return 0, dErrors.Wrap(ErrMintToZero, dErrors.CodeInvalidInput, "cannot mint to the null address")
	}
	if quantity == 0 {
		return 0, dErrors.Wrap(ErrZeroQuantity, dErrors.CodeInvalidInput, "mint quantity must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.nextID
	if quantity > math.MaxUint64-uint64(start) {
		return 0, dErrors.New(dErrors.CodeValidation, "mint would exhaust token ids")
	}
	if r.hook != nil {
		if err := r.hook.CheckTransfer(ctx, domain.NullAddress, to, start, quantity); err != nil {
			return 0, err
		}
	}
	for i := range quantity {
		r.owners[start+domain.TokenID(i)] = to
	}
	r.nextID = start + domain.TokenID(quantity)

	audit.LogAudit(ctx, r.logger, r.auditPublisher, audit.EventTokensTransferred,
		"from", domain.NullAddress,
		"to", to,
		"start_id", start,
		"quantity", quantity,
	)
	return start, nil
}

// SetApprovalForAll lets operator move all of owner's tokens.
func (r *Registry) SetApprovalForAll(_ context.Context, owner, operator domain.Address, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.operators[owner] == nil {
		r.operators[owner] = make(map[domain.Address]bool)
	}
	r.operators[owner][operator] = approved
}

// TransferFrom moves [startID, startID+quantity) from from to to. The batch
// is validated and passed through the hook before anything moves, so a
// rejected batch leaves every token with its previous owner.
func (r *Registry) TransferFrom(ctx context.Context, operator, from, to domain.Address, startID domain.TokenID, quantity uint64) error {
	if quantity == 0 {
		return dErrors.Wrap(ErrZeroQuantity, dErrors.CodeInvalidInput, "transfer quantity must be positive")
	}
	if to.IsZero() {
		return dErrors.Wrap(ErrTransferToZero, dErrors.CodeInvalidInput, "cannot transfer to the null address")
	}
	if quantity-1 > math.MaxUint64-uint64(startID) {
		return dErrors.New(dErrors.CodeValidation, "transfer range overflows token ids")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if operator != from && !r.operators[from][operator] {
		return dErrors.Wrap(ErrNotApproved, dErrors.CodeForbidden,
			fmt.Sprintf("%s may not transfer tokens of %s", operator, from))
	}
	for i := range quantity {
		id := startID + domain.TokenID(i)
		owner, ok := r.owners[id]
		if !ok {
			return dErrors.Wrap(ErrTokenNotFound, dErrors.CodeNotFound, fmt.Sprintf("token %d does not exist", id))
		}
		if owner != from {
			return dErrors.Wrap(ErrNotTokenOwner, dErrors.CodeForbidden, fmt.Sprintf("token %d is not owned by %s", id, from))
		}
	}
	if r.hook != nil {
		if err := r.hook.CheckTransfer(ctx, from, to, startID, quantity); err != nil {
			return err
		}
	}
	for i := range quantity {
		r.owners[startID+domain.TokenID(i)] = to
	}

	audit.LogAudit(ctx, r.logger, r.auditPublisher, audit.EventTokensTransferred,
		"from", from,
		"to", to,
		"start_id", startID,
		"quantity", quantity,
	)
	return nil
}
