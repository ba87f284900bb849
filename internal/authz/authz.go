// Package authz is the role table consulted by privileged operations.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
	"lockmint/pkg/platform/audit"
)

var ErrMissingRole = errors.New("missing role")

type Table struct {
	mu             sync.RWMutex
	members        map[domain.Role]map[domain.Address]struct{}
	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Table)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(t *Table) {
		t.auditPublisher = publisher
	}
}

// New creates a table where admin holds RoleAdmin.
func New(admin domain.Address, opts ...Option) *Table {
	t := &Table{
		members: make(map[domain.Role]map[domain.Address]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if !admin.IsZero() {
		t.add(domain.RoleAdmin, admin)
	}
	return t
}

// HasRole reports whether account holds role.
func (t *Table) HasRole(_ context.Context, role domain.Role, account domain.Address) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[role][account]
	return ok, nil
}

// Require fails with CodeForbidden unless account holds role.
func (t *Table) Require(ctx context.Context, role domain.Role, account domain.Address) error {
	ok, err := t.HasRole(ctx, role, account)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.Wrap(ErrMissingRole, dErrors.CodeForbidden,
			fmt.Sprintf("account %s lacks role %s", account, role))
	}
	return nil
}

// Grant gives role to account. Only admins may grant.
func (t *Table) Grant(ctx context.Context, caller domain.Address, role domain.Role, account domain.Address) error {
	if err := t.checkChange(ctx, caller, role, account); err != nil {
		return err
	}
	t.add(role, account)
	audit.LogAudit(ctx, t.logger, t.auditPublisher, audit.EventRoleGranted,
		"role", role,
		"account", account,
		"admin", caller,
	)
	return nil
}

// Revoke removes role from account. Only admins may revoke.
func (t *Table) Revoke(ctx context.Context, caller domain.Address, role domain.Role, account domain.Address) error {
	if err := t.checkChange(ctx, caller, role, account); err != nil {
		return err
	}
	t.mu.Lock()
	delete(t.members[role], account)
	t.mu.Unlock()
	audit.LogAudit(ctx, t.logger, t.auditPublisher, audit.EventRoleRevoked,
		"role", role,
		"account", account,
		"admin", caller,
	)
	return nil
}

func (t *Table) checkChange(ctx context.Context, caller domain.Address, role domain.Role, account domain.Address) error {
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown role %q", role))
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "account cannot be the null address")
	}
	return t.Require(ctx, domain.RoleAdmin, caller)
}

func (t *Table) add(role domain.Role, account domain.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.members[role] == nil {
		t.members[role] = make(map[domain.Address]struct{})
	}
	t.members[role][account] = struct{}{}
}
