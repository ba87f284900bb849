package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockmint/internal/allowance/models"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/sentinel"
)

var (
	alice = domain.MustParseAddress("0x00000000000000000000000000000000000a11ce")
	bob   = domain.MustParseAddress("0x0000000000000000000000000000000000000b0b")
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("state is not found before the first save", func(t *testing.T) {
		s := NewInMemory()
		_, err := s.GetState(ctx)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("unknown allowance is zero", func(t *testing.T) {
		s := NewInMemory()
		got, err := s.GetAllowance(ctx, alice)
		require.NoError(t, err)
		assert.Zero(t, got)
	})

	t.Run("returned state is a copy", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.SaveState(ctx, models.State{PurchasedTotal: 4}))
		got, err := s.GetState(ctx)
		require.NoError(t, err)
		got.PurchasedTotal = 99

		again, err := s.GetState(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), again.PurchasedTotal)
	})
}

func TestInMemoryStore_RunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit keeps every write", func(t *testing.T) {
		s := NewInMemory()
		err := s.RunInTx(ctx, func(ctx context.Context) error {
			require.NoError(t, s.SaveState(ctx, models.State{PurchasedTotal: 3}))
			return s.SetAllowance(ctx, alice, 3)
		})
		require.NoError(t, err)

		state, err := s.GetState(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), state.PurchasedTotal)
		got, _ := s.GetAllowance(ctx, alice)
		assert.Equal(t, uint64(3), got)
	})

	t.Run("error rolls back state and allowances", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.SaveState(ctx, models.State{PurchasedTotal: 10}))
		require.NoError(t, s.SetAllowance(ctx, alice, 10))

		boom := errors.New("payment failed")
		err := s.RunInTx(ctx, func(ctx context.Context) error {
			require.NoError(t, s.SaveState(ctx, models.State{PurchasedTotal: 15}))
			require.NoError(t, s.SetAllowance(ctx, alice, 12))
			require.NoError(t, s.SetAllowance(ctx, alice, 13))
			require.NoError(t, s.SetAllowance(ctx, bob, 3))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		state, err := s.GetState(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), state.PurchasedTotal)
		got, _ := s.GetAllowance(ctx, alice)
		assert.Equal(t, uint64(10), got)
		got, _ = s.GetAllowance(ctx, bob)
		assert.Zero(t, got)
	})

	t.Run("rollback of the first save restores not found", func(t *testing.T) {
		s := NewInMemory()
		_ = s.RunInTx(ctx, func(ctx context.Context) error {
			require.NoError(t, s.SaveState(ctx, models.State{PurchasedTotal: 1}))
			return errors.New("abort")
		})
		_, err := s.GetState(ctx)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		s := NewInMemory()
		assert.Panics(t, func() {
			_ = s.RunInTx(ctx, func(ctx context.Context) error {
				_ = s.SetAllowance(ctx, alice, 1)
				panic("mint exploded")
			})
		})
		got, _ := s.GetAllowance(ctx, alice)
		assert.Zero(t, got)
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		s := NewInMemory()
		err := s.RunInTx(ctx, func(ctx context.Context) error {
			require.NoError(t, s.RunInTx(ctx, func(ctx context.Context) error {
				return s.SetAllowance(ctx, alice, 5)
			}))
			return errors.New("outer fails")
		})
		assert.Error(t, err)
		got, _ := s.GetAllowance(ctx, alice)
		assert.Zero(t, got)
	})
}
