package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lockmint/internal/lock/models"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/sentinel"
)

// PostgresStore persists lock records in PostgreSQL. It is pure I/O; the
// implicit default and all lock arithmetic live in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS lock_records (
	token_id      BIGINT PRIMARY KEY,
	start_time    TIMESTAMPTZ,
	total_seconds BIGINT NOT NULL DEFAULT 0
);
`

// Migrate creates the lock_records table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate lock records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tokenID domain.TokenID) (*models.LockRecord, error) {
	query := `SELECT start_time, total_seconds FROM lock_records WHERE token_id = $1`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, int64(tokenID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get lock record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) GetMany(ctx context.Context, tokenIDs []domain.TokenID) (map[domain.TokenID]models.LockRecord, error) {
	out := make(map[domain.TokenID]models.LockRecord, len(tokenIDs))
	if len(tokenIDs) == 0 {
		return out, nil
	}
	ids := make([]int64, len(tokenIDs))
	for i, id := range tokenIDs {
		ids[i] = int64(id)
	}

	query := `SELECT token_id, start_time, total_seconds FROM lock_records WHERE token_id = ANY($1::bigint[])`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query lock records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			start sql.NullTime
			total int64
		)
		if err := rows.Scan(&id, &start, &total); err != nil {
			return nil, fmt.Errorf("scan lock record: %w", err)
		}
		out[domain.TokenID(id)] = toRecord(start, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lock records: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, tokenID domain.TokenID, record models.LockRecord) error {
	query := `
		INSERT INTO lock_records (token_id, start_time, total_seconds)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			total_seconds = EXCLUDED.total_seconds
	`
	start := sql.NullTime{Time: record.StartTime, Valid: record.IsLocked()}
	total := int64(record.TotalTime / time.Second)
	if _, err := s.db.ExecContext(ctx, query, int64(tokenID), start, total); err != nil {
		return fmt.Errorf("save lock record: %w", err)
	}
	return nil
}

func scanRecord(row *sql.Row) (*models.LockRecord, error) {
	var (
		start sql.NullTime
		total int64
	)
	if err := row.Scan(&start, &total); err != nil {
		return nil, err
	}
	record := toRecord(start, total)
	return &record, nil
}

func toRecord(start sql.NullTime, total int64) models.LockRecord {
	record := models.LockRecord{TotalTime: time.Duration(total) * time.Second}
	if start.Valid {
		record.StartTime = models.Normalize(start.Time)
	}
	return record
}
