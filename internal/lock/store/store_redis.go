package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lockmint/internal/lock/models"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/sentinel"
)

const (
	keyPrefix  = "lockmint:lock:"
	fieldStart = "start"
	fieldTotal = "total"
)

// RedisStore keeps one hash per token: start (unix seconds, 0 when unlocked)
// and total (seconds).
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(tokenID domain.TokenID) string {
	return keyPrefix + tokenID.String()
}

func (s *RedisStore) Get(ctx context.Context, tokenID domain.TokenID) (*models.LockRecord, error) {
	values, err := s.client.HGetAll(ctx, recordKey(tokenID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get lock record: %w", err)
	}
	if len(values) == 0 {
		return nil, sentinel.ErrNotFound
	}
	record, err := decodeRecord(values)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RedisStore) GetMany(ctx context.Context, tokenIDs []domain.TokenID) (map[domain.TokenID]models.LockRecord, error) {
	out := make(map[domain.TokenID]models.LockRecord, len(tokenIDs))
	if len(tokenIDs) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(tokenIDs))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range tokenIDs {
			cmds[i] = pipe.HGetAll(ctx, recordKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get lock records: %w", err)
	}

	for i, cmd := range cmds {
		values := cmd.Val()
		if len(values) == 0 {
			continue
		}
		record, err := decodeRecord(values)
		if err != nil {
			return nil, err
		}
		out[tokenIDs[i]] = record
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, tokenID domain.TokenID, record models.LockRecord) error {
	var start int64
	if record.IsLocked() {
		start = record.StartTime.Unix()
	}
	err := s.client.HSet(ctx, recordKey(tokenID),
		fieldStart, start,
		fieldTotal, int64(record.TotalTime/time.Second),
	).Err()
	if err != nil {
		return fmt.Errorf("save lock record: %w", err)
	}
	return nil
}

func decodeRecord(values map[string]string) (models.LockRecord, error) {
	start, err := strconv.ParseInt(values[fieldStart], 10, 64)
	if err != nil {
		return models.LockRecord{}, fmt.Errorf("decode lock start: %w", err)
	}
	total, err := strconv.ParseInt(values[fieldTotal], 10, 64)
	if err != nil {
		return models.LockRecord{}, fmt.Errorf("decode lock total: %w", err)
	}
	record := models.LockRecord{TotalTime: time.Duration(total) * time.Second}
	if start > 0 {
		record.StartTime = time.Unix(start, 0).UTC()
	}
	return record, nil
}
