package store

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrConflict a concurrent transaction touched the same rows; the attempt must be replayed
var ErrConflict = errors.New("transaction conflict")

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// MapConflict converts postgres serialization failures and deadlocks into ErrConflict
func MapConflict(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return ErrConflict
		}
	}
	return err
}

// Retrier replays a transactional function while it fails with ErrConflict
type Retrier struct {
	MaxAttempts int
	Backoff     time.Duration
	logger      *zap.Logger
}

func NewRetrier(maxAttempts int, backoff time.Duration, logger *zap.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{MaxAttempts: maxAttempts, Backoff: backoff, logger: logger}
}

// Do calls fn until it succeeds, fails with a non-conflict error, or attempts run out.
// fn receives the 1-based attempt number.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err = MapConflict(fn(ctx, attempt))
		if !errors.Is(err, ErrConflict) {
			return err
		}
		r.logger.Debug("transaction conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.MaxAttempts),
		)
		if attempt == r.MaxAttempts {
			break
		}
		wait := r.Backoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
