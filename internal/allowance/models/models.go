package models

import (
	"errors"
	"math"
	"math/bits"
	"time"

	"lockmint/internal/merkle"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
)

// Day is the capacity period. Capacity grows by DailySupply per whole day
// since deployment.
const Day = 24 * time.Hour

var (
	ErrNoPurchasableTokens     = errors.New("no purchasable tokens")
	ErrZeroAmountNotAllowed    = errors.New("zero amount not allowed")
	ErrReceiverNotWhitelisted  = errors.New("receiver not whitelisted")
	ErrNotEnoughMintableTokens = errors.New("not enough mintable tokens for this user")
	ErrArithmeticOverflow      = errors.New("arithmetic overflow")
)

// Settings are the sale parameters admins may change.
type Settings struct {
	DailySupply     uint64         `json:"daily_supply"`
	PricePerUnit    uint64         `json:"price_per_unit"`
	PaymentReceiver domain.Address `json:"payment_receiver"`
	PaymentAsset    string         `json:"payment_asset"`
	MembershipRoot  merkle.Hash    `json:"membership_root"`
}

// State is the persisted global ledger state. PurchasedTotal never decreases.
type State struct {
	PurchasedTotal uint64
	Settings       Settings
}

// Config is the construction-time ledger configuration. DeploymentTime and
// LedgerAddress are fixed for the life of the ledger; Settings seed the state
// until an admin changes them.
type Config struct {
	DeploymentTime time.Time
	LedgerAddress  domain.Address
	Settings       Settings
}

func (c Config) Validate() error {
	if c.DeploymentTime.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "deployment time is required")
	}
	if c.LedgerAddress.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "ledger address is required")
	}
	if c.Settings.PaymentAsset == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "payment asset is required")
	}
	return nil
}

// ElapsedDays returns the whole days between deployment and now, zero before
// deployment.
func ElapsedDays(deployment, now time.Time) uint64 {
	if !now.After(deployment) {
		return 0
	}
	return uint64(now.Sub(deployment) / Day)
}

// Capacity is days * dailySupply, saturating at MaxUint64.
func Capacity(days, dailySupply uint64) uint64 {
	hi, lo := bits.Mul64(days, dailySupply)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// Available is capacity - purchased, floored at zero.
func Available(capacity, purchased uint64) uint64 {
	if purchased >= capacity {
		return 0
	}
	return capacity - purchased
}

// Cost is price * amount, failing on overflow.
func Cost(price, amount uint64) (uint64, error) {
	hi, lo := bits.Mul64(price, amount)
	if hi != 0 {
		return 0, dErrors.Wrap(ErrArithmeticOverflow, dErrors.CodeValidation, "purchase cost overflows")
	}
	return lo, nil
}

// CheckedAdd returns a + b, failing on overflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, dErrors.Wrap(ErrArithmeticOverflow, dErrors.CodeInvariantViolation, "ledger counter overflows")
	}
	return sum, nil
}

// Stats is the read model of the global ledger.
type Stats struct {
	ElapsedDays    uint64   `json:"elapsed_days"`
	Capacity       uint64   `json:"capacity"`
	PurchasedTotal uint64   `json:"purchased_total"`
	Available      uint64   `json:"available"`
	Settings       Settings `json:"settings"`
}

// PurchaseReceipt describes a committed purchase.
type PurchaseReceipt struct {
	Buyer          domain.Address `json:"buyer"`
	Recipient      domain.Address `json:"recipient"`
	Amount         uint64         `json:"amount"`
	Cost           uint64         `json:"cost"`
	Allowance      uint64         `json:"allowance"`
	PurchasedTotal uint64         `json:"purchased_total"`
}

// RedeemReceipt describes a committed redemption.
type RedeemReceipt struct {
	Recipient    domain.Address `json:"recipient"`
	Amount       uint64         `json:"amount"`
	FirstTokenID domain.TokenID `json:"first_token_id"`
	Allowance    uint64         `json:"allowance"`
}
