package shared

import (
	"context"
	"errors"
	"time"

	"github.com/campusdesk/campusdesk/internal/platform/db"
)

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	q   db.DBTX
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(q db.DBTX) *IdempotencyStore {
	return &IdempotencyStore{q: q, now: time.Now}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// WithQuerier returns a store writing through q so the key shares the caller's transaction.
func (s *IdempotencyStore) WithQuerier(q db.DBTX) *IdempotencyStore {
	if s == nil {
		return nil
	}
	return &IdempotencyStore{q: q, now: s.now}
}

// CheckAndInsert ensures key uniqueness per module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.q == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.q.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now())
	if err != nil {
		if db.PgErrorCode(err) == db.CodeUniqueViolation {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention and reports how many were dropped.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.q == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-olderThan)
	tag, err := s.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
