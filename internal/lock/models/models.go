package models

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
)

// Precision is the basis-point denominator of the penalty rate.
const Precision uint64 = 10_000

var (
	ErrTokenNotMinted        = errors.New("token not minted")
	ErrTokenIsLocked         = errors.New("token is locked")
	ErrNotOwnerOfToken       = errors.New("not owner of token")
	ErrNoTokenURIProviderSet = errors.New("no token uri provider set")
	ErrInvalidPenaltyRate    = errors.New("penalty rate exceeds precision")
	ErrLockStateNotFlipped   = errors.New("lock state did not flip")
)

// TokenLockedError identifies the first locked token that blocked a transfer.
type TokenLockedError struct {
	TokenID domain.TokenID
}

func (e *TokenLockedError) Error() string {
	return fmt.Sprintf("token %d is locked", e.TokenID)
}

// Is makes errors.Is(err, ErrTokenIsLocked) match.
func (e *TokenLockedError) Is(target error) bool {
	return target == ErrTokenIsLocked
}

// Normalize truncates t to whole seconds in UTC. All lock arithmetic runs on
// normalized instants.
func Normalize(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}

// LockRecord is the persisted per-token lock state. A zero StartTime means the
// token is unlocked. TotalTime only changes at toggle events.
type LockRecord struct {
	StartTime time.Time     `json:"start_time"`
	TotalTime time.Duration `json:"total_time"`
}

// IsLocked reports whether a lock window is open.
func (r LockRecord) IsLocked() bool {
	return !r.StartTime.IsZero()
}

// IsExplicit reports whether the record carries state of its own. Records
// without state fall back to the implicit default.
func (r LockRecord) IsExplicit() bool {
	return !r.StartTime.IsZero() || r.TotalTime > 0
}

// RecordKind tells whether a resolved record came from storage or from the
// lock-since-deployment default.
type RecordKind int

const (
	KindImplicitDefault RecordKind = iota
	KindExplicit
)

func (k RecordKind) String() string {
	if k == KindExplicit {
		return "explicit"
	}
	return "implicit_default"
}

// ResolvedRecord is the result of a lookup: the kind plus the effective record.
type ResolvedRecord struct {
	Kind   RecordKind
	Record LockRecord
}

// Resolve picks the effective record for a token. stored may be nil when the
// store has nothing for the token.
func Resolve(stored *LockRecord, deploymentTime time.Time) ResolvedRecord {
	if stored != nil && stored.IsExplicit() {
		return ResolvedRecord{Kind: KindExplicit, Record: *stored}
	}
	return ResolvedRecord{
		Kind:   KindImplicitDefault,
		Record: LockRecord{StartTime: Normalize(deploymentTime)},
	}
}

// Materialize returns r with the open lock window folded into TotalTime as of
// now. It never mutates r. A StartTime in the future is clamped to now.
func Materialize(r LockRecord, now time.Time) LockRecord {
	if !r.IsLocked() {
		return r
	}
	now = Normalize(now)
	if r.StartTime.After(now) {
		r.StartTime = now
	}
	r.TotalTime += now.Sub(r.StartTime)
	return r
}

// Penalty returns how many seconds of total are forfeited when re-entering the
// lock. A proportional penalty that would round to zero erases the whole
// balance instead.
func Penalty(total, rate, precision uint64) uint64 {
	if rate == 0 || total == 0 {
		return 0
	}
	rate = min(rate, precision)
	hi, lo := bits.Mul64(total, rate)
	if hi == 0 && lo < precision {
		return total
	}
	q, _ := bits.Div64(hi, lo, precision)
	return q
}

// Toggle computes the next record. Entering the lock charges the penalty on
// the previously accumulated total and opens a window at now. Leaving the
// lock materializes the window and closes it.
func Toggle(r LockRecord, now time.Time, rate uint64) LockRecord {
	now = Normalize(now)
	if r.IsLocked() {
		next := Materialize(r, now)
		next.StartTime = time.Time{}
		return next
	}
	total := uint64(r.TotalTime / time.Second)
	total -= min(Penalty(total, rate, Precision), total)
	return LockRecord{
		StartTime: now,
		TotalTime: time.Duration(total) * time.Second,
	}
}

// Config is the global lock configuration.
type Config struct {
	DeploymentTime time.Time
	PenaltyRate    uint64
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.DeploymentTime.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "deployment time is required")
	}
	return ValidatePenaltyRate(c.PenaltyRate)
}

// ValidatePenaltyRate checks rate lies in [0, Precision].
func ValidatePenaltyRate(rate uint64) error {
	if rate > Precision {
		return dErrors.Wrap(ErrInvalidPenaltyRate, dErrors.CodeValidation,
			fmt.Sprintf("penalty rate %d exceeds %d", rate, Precision))
	}
	return nil
}

// LockInfo is the read model returned to callers.
type LockInfo struct {
	TokenID   domain.TokenID `json:"token_id"`
	Locked    bool           `json:"locked"`
	Kind      RecordKind     `json:"-"`
	StartTime time.Time      `json:"start_time"`
	TotalTime time.Duration  `json:"total_time"`
}

// NewLockInfo builds the read model for a resolved, materialized record.
func NewLockInfo(tokenID domain.TokenID, kind RecordKind, r LockRecord) *LockInfo {
	return &LockInfo{
		TokenID:   tokenID,
		Locked:    r.IsLocked(),
		Kind:      kind,
		StartTime: r.StartTime,
		TotalTime: r.TotalTime,
	}
}
