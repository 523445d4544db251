package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapConflict(t *testing.T) {
	assert.NoError(t, MapConflict(nil))
	assert.ErrorIs(t, MapConflict(&pq.Error{Code: "40001"}), ErrConflict)
	assert.ErrorIs(t, MapConflict(fmt.Errorf("commit: %w", &pq.Error{Code: "40P01"})), ErrConflict)

	unique := &pq.Error{Code: "23505"}
	assert.Same(t, unique, MapConflict(unique))
}

func TestRetrier_ReplaysConflicts(t *testing.T) {
	r := NewRetrier(3, 0, nil)
	var attempts []int

	err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestRetrier_GivesUp(t *testing.T) {
	r := NewRetrier(2, 0, nil)
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return ErrConflict
	})

	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 2, calls)
}

func TestRetrier_StopsOnOtherErrors(t *testing.T) {
	r := NewRetrier(5, 0, nil)
	boom := errors.New("boom")
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetrier_HonoursContext(t *testing.T) {
	r := NewRetrier(5, 1<<40, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, func(ctx context.Context, attempt int) error {
		return ErrConflict
	})
	assert.ErrorIs(t, err, context.Canceled)
}
