//go:build integration

package store_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"lockmint/internal/allowance/models"
	"lockmint/internal/allowance/store"
	"lockmint/internal/merkle"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/sentinel"
	"lockmint/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.pg.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "allowance_state", "allowances"))
}

func (s *PostgresStoreSuite) TestStateRoundTripKeepsFullRange() {
	ctx := context.Background()
	_, err := s.store.GetState(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)

	in := models.State{
		PurchasedTotal: math.MaxUint64,
		Settings: models.Settings{
			DailySupply:     10,
			PricePerUnit:    math.MaxUint64 - 1,
			PaymentReceiver: domain.MustParseAddress("0x00000000000000000000000000000000000000ee"),
			PaymentAsset:    "usdc",
			MembershipRoot:  merkle.Keccak256([]byte("root")),
		},
	}
	s.Require().NoError(s.store.SaveState(ctx, in))

	got, err := s.store.GetState(ctx)
	s.Require().NoError(err)
	s.Equal(in, *got)
}

func (s *PostgresStoreSuite) TestAllowanceDefaultsToZero() {
	got, err := s.store.GetAllowance(context.Background(), domain.MustParseAddress("0x0000000000000000000000000000000000000001"))
	s.Require().NoError(err)
	s.Zero(got)
}

func (s *PostgresStoreSuite) TestRollbackDiscardsWrites() {
	ctx := context.Background()
	account := domain.MustParseAddress("0x0000000000000000000000000000000000000002")
	s.Require().NoError(s.store.SetAllowance(ctx, account, 4))

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.SetAllowance(ctx, account, 9))
		s.Require().NoError(s.store.SaveState(ctx, models.State{PurchasedTotal: 9, Settings: models.Settings{PaymentAsset: "usdc"}}))
		return errors.New("payment failed")
	})
	s.Error(err)

	got, err := s.store.GetAllowance(ctx, account)
	s.Require().NoError(err)
	s.Equal(uint64(4), got)
	_, err = s.store.GetState(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCommitKeepsWrites() {
	ctx := context.Background()
	account := domain.MustParseAddress("0x0000000000000000000000000000000000000003")

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.GetAllowance(ctx, account)
		if err != nil {
			return err
		}
		return s.store.SetAllowance(ctx, account, current+7)
	})
	s.Require().NoError(err)

	got, err := s.store.GetAllowance(ctx, account)
	s.Require().NoError(err)
	s.Equal(uint64(7), got)
}
