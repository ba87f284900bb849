// Package payment is an in-memory fungible asset with balances and spending
// approvals, plus a directory resolving asset references.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownAsset          = errors.New("unknown payment asset")
	ErrBalanceOverflow       = errors.New("balance overflow")
)

// Asset is a fungible balance ledger. All checks run before any mutation, so
// a failed transfer changes nothing.
type Asset struct {
	mu         sync.RWMutex
	ref        string
	balances   map[domain.Address]uint64
	allowances map[domain.Address]map[domain.Address]uint64
}

func NewAsset(ref string) *Asset {
	return &Asset{
		ref:        ref,
		balances:   make(map[domain.Address]uint64),
		allowances: make(map[domain.Address]map[domain.Address]uint64),
	}
}

// Ref returns the reference the asset is registered under.
func (a *Asset) Ref() string {
	return a.ref
}

// Credit adds amount to account's balance.
func (a *Asset) Credit(_ context.Context, account domain.Address, amount uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount > math.MaxUint64-a.balances[account] {
		return dErrors.Wrap(ErrBalanceOverflow, dErrors.CodeValidation, "credit overflows balance")
	}
	a.balances[account] += amount
	return nil
}

func (a *Asset) BalanceOf(_ context.Context, account domain.Address) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balances[account]
}

// Approve sets how much spender may move out of owner's balance.
func (a *Asset) Approve(_ context.Context, owner, spender domain.Address, amount uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.allowances[owner] == nil {
		a.allowances[owner] = make(map[domain.Address]uint64)
	}
	a.allowances[owner][spender] = amount
}

func (a *Asset) Allowance(_ context.Context, owner, spender domain.Address) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.allowances[owner][spender]
}

// TransferFrom moves amount from from to to on behalf of spender. A spender
// moving its own funds needs no approval. An allowance of MaxUint64 is never
// decreased.
func (a *Asset) TransferFrom(_ context.Context, spender, from, to domain.Address, amount uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	approved := a.allowances[from][spender]
	if spender != from && approved < amount {
		return dErrors.Wrap(ErrInsufficientAllowance, dErrors.CodeConflict,
			fmt.Sprintf("%s allowance for %s is %d, need %d", a.ref, spender, approved, amount))
	}
	if a.balances[from] < amount {
		return dErrors.Wrap(ErrInsufficientBalance, dErrors.CodeConflict,
			fmt.Sprintf("%s balance of %s is %d, need %d", a.ref, from, a.balances[from], amount))
	}
	if from != to && amount > math.MaxUint64-a.balances[to] {
		return dErrors.Wrap(ErrBalanceOverflow, dErrors.CodeValidation, "transfer overflows receiver balance")
	}

	if spender != from && approved != math.MaxUint64 {
		a.allowances[from][spender] = approved - amount
	}
	a.balances[from] -= amount
	a.balances[to] += amount
	return nil
}

// Directory resolves asset references such as "USDC".
type Directory struct {
	mu     sync.RWMutex
	assets map[string]*Asset
}

func NewDirectory(assets ...*Asset) *Directory {
	d := &Directory{assets: make(map[string]*Asset)}
	for _, a := range assets {
		d.Register(a)
	}
	return d
}

func (d *Directory) Register(asset *Asset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[asset.Ref()] = asset
}

// Asset returns the asset registered under ref.
func (d *Directory) Asset(ref string) (*Asset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	asset, ok := d.assets[ref]
	if !ok {
		return nil, dErrors.Wrap(ErrUnknownAsset, dErrors.CodeNotFound, fmt.Sprintf("payment asset %q is not registered", ref))
	}
	return asset, nil
}

// Transferer is the settlement primitive purchases pay through.
type Transferer interface {
	TransferFrom(ctx context.Context, spender, from, to domain.Address, amount uint64) error
}

// Resolve returns the asset under ref as a Transferer.
func (d *Directory) Resolve(ref string) (Transferer, error) {
	asset, err := d.Asset(ref)
	if err != nil {
		return nil, err
	}
	return asset, nil
}
