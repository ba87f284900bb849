// Package ports defines the interfaces the allowance ledger consumes.
package ports

import (
	"context"

	"lockmint/internal/allowance/models"
	"lockmint/internal/merkle"
	"lockmint/internal/payment"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/audit"
)

// AuditPublisher emits audit events for ledger operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Store persists the ledger. Writes made inside RunInTx are discarded when fn
// returns an error or the commit fails.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// GetState returns sentinel.ErrNotFound before the first SaveState.
	GetState(ctx context.Context) (*models.State, error)
	SaveState(ctx context.Context, state models.State) error

	// GetAllowance returns zero for unknown addresses.
	GetAllowance(ctx context.Context, account domain.Address) (uint64, error)
	SetAllowance(ctx context.Context, account domain.Address, amount uint64) error
}

// Minter is the ownership registry's mint primitive.
type Minter interface {
	Mint(ctx context.Context, minter, to domain.Address, quantity uint64) (domain.TokenID, error)
}

// ProofVerifier checks allowlist membership.
type ProofVerifier interface {
	Verify(proof []merkle.Hash, root merkle.Hash, account domain.Address) bool
}

// PaymentDirectory resolves the configured payment asset reference.
type PaymentDirectory interface {
	Resolve(ref string) (payment.Transferer, error)
}

// Authorizer checks role membership.
type Authorizer interface {
	Require(ctx context.Context, role domain.Role, account domain.Address) error
}
