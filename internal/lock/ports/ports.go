// Package ports defines the interfaces the lock module consumes.
package ports

import (
	"context"

	"lockmint/internal/lock/models"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/audit"
)

// AuditPublisher emits audit events for lock operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Store persists explicit lock records. Tokens without a record resolve to
// the implicit default in the service.
type Store interface {
	// Get returns the stored record or sentinel.ErrNotFound.
	Get(ctx context.Context, tokenID domain.TokenID) (*models.LockRecord, error)

	// GetMany returns the stored records for the ids that have one.
	GetMany(ctx context.Context, tokenIDs []domain.TokenID) (map[domain.TokenID]models.LockRecord, error)

	// Save upserts the record for a token.
	Save(ctx context.Context, tokenID domain.TokenID, record models.LockRecord) error
}

// TokenRegistry answers existence and ownership questions about tokens.
type TokenRegistry interface {
	Exists(ctx context.Context, tokenID domain.TokenID) (bool, error)

	// WithOwnerLocked runs fn with the token's owner while ownership of the
	// token is frozen. Errors from fn are returned unchanged.
	WithOwnerLocked(ctx context.Context, tokenID domain.TokenID, fn func(owner domain.Address) error) error
}

// URIProvider renders metadata URIs for tokens.
type URIProvider interface {
	TokenURI(ctx context.Context, tokenID domain.TokenID) (string, error)
}

// Authorizer checks role membership.
type Authorizer interface {
	Require(ctx context.Context, role domain.Role, account domain.Address) error
}
