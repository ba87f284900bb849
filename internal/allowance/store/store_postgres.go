package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"lockmint/internal/allowance/models"
	"lockmint/internal/merkle"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/sentinel"
	txcontext "lockmint/pkg/platform/tx"
)

// PostgresStore persists the ledger in PostgreSQL. Counters are NUMERIC(20)
// so the full uint64 range round-trips.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const schema = `
CREATE TABLE IF NOT EXISTS allowance_state (
	id               SMALLINT PRIMARY KEY CHECK (id = 1),
	purchased_total  NUMERIC(20) NOT NULL,
	daily_supply     NUMERIC(20) NOT NULL,
	price_per_unit   NUMERIC(20) NOT NULL,
	payment_receiver TEXT NOT NULL,
	payment_asset    TEXT NOT NULL,
	membership_root  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS allowances (
	address TEXT PRIMARY KEY,
	amount  NUMERIC(20) NOT NULL
);
`

// Migrate creates the ledger tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate allowance ledger: %w", err)
	}
	return nil
}

// RunInTx runs fn in a SQL transaction carried by ctx.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, fn)
}

// GetState reads the singleton state row, locking it when called inside a
// transaction.
func (s *PostgresStore) GetState(ctx context.Context) (*models.State, error) {
	query := `
		SELECT purchased_total::text, daily_supply::text, price_per_unit::text,
			payment_receiver, payment_asset, membership_root
		FROM allowance_state WHERE id = 1
	`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}

	var (
		purchased, supply, price string
		receiver, asset, root    string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query).Scan(&purchased, &supply, &price, &receiver, &asset, &root)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get allowance state: %w", err)
	}

	state := &models.State{Settings: models.Settings{PaymentAsset: asset}}
	if state.PurchasedTotal, err = parseUint(purchased); err != nil {
		return nil, err
	}
	if state.Settings.DailySupply, err = parseUint(supply); err != nil {
		return nil, err
	}
	if state.Settings.PricePerUnit, err = parseUint(price); err != nil {
		return nil, err
	}
	if state.Settings.PaymentReceiver, err = domain.ParseAddress(receiver); err != nil {
		return nil, fmt.Errorf("parse payment receiver: %w", err)
	}
	if state.Settings.MembershipRoot, err = merkle.ParseHash(root); err != nil {
		return nil, fmt.Errorf("parse membership root: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) SaveState(ctx context.Context, state models.State) error {
	query := `
		INSERT INTO allowance_state (id, purchased_total, daily_supply, price_per_unit,
			payment_receiver, payment_asset, membership_root)
		VALUES (1, $1::numeric, $2::numeric, $3::numeric, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			purchased_total = EXCLUDED.purchased_total,
			daily_supply = EXCLUDED.daily_supply,
			price_per_unit = EXCLUDED.price_per_unit,
			payment_receiver = EXCLUDED.payment_receiver,
			payment_asset = EXCLUDED.payment_asset,
			membership_root = EXCLUDED.membership_root
	`
	settings := state.Settings
	_, err := s.execer(ctx).ExecContext(ctx, query,
		formatUint(state.PurchasedTotal),
		formatUint(settings.DailySupply),
		formatUint(settings.PricePerUnit),
		settings.PaymentReceiver.String(),
		settings.PaymentAsset,
		settings.MembershipRoot.String(),
	)
	if err != nil {
		return fmt.Errorf("save allowance state: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAllowance(ctx context.Context, account domain.Address) (uint64, error) {
	query := `SELECT amount::text FROM allowances WHERE address = $1`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	var raw string
	err := s.execer(ctx).QueryRowContext(ctx, query, account.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get allowance: %w", err)
	}
	return parseUint(raw)
}

func (s *PostgresStore) SetAllowance(ctx context.Context, account domain.Address, amount uint64) error {
	query := `
		INSERT INTO allowances (address, amount) VALUES ($1, $2::numeric)
		ON CONFLICT (address) DO UPDATE SET amount = EXCLUDED.amount
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, account.String(), formatUint(amount)); err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return nil
}

func parseUint(raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ledger counter %q: %w", raw, err)
	}
	return v, nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
