package service

//go:generate mockgen -source=../ports/ports.go -destination=mocks/mocks.go -package=mocks
//go:generate mockgen -destination=mocks/transferer.go -package=mocks lockmint/internal/payment Transferer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lockmint/internal/allowance/metrics"
	"lockmint/internal/allowance/models"
	"lockmint/internal/allowance/service/mocks"
	"lockmint/internal/allowance/store"
	"lockmint/internal/merkle"
	"lockmint/internal/payment"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
	"lockmint/pkg/platform/audit"
	"lockmint/pkg/platform/sentinel"
	auditmemory "lockmint/pkg/platform/audit/store/memory"
	"lockmint/pkg/requestcontext"
)

// =============================================================================
// Allowance Service Test Suite
// =============================================================================
// Justification for unit tests: the ledger's guarantees (check order,
// conservation, rollback on failed payment or mint) depend on a controlled
// clock and on observing store and collaborator calls in order.

var (
	deployment = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger     = domain.MustParseAddress("0x000000000000000000000000000000000000face")
	receiver   = domain.MustParseAddress("0x00000000000000000000000000000000000000ee")
	alice      = domain.MustParseAddress("0x1111111111111111111111111111111111111111")
	bob        = domain.MustParseAddress("0x2222222222222222222222222222222222222222")
	carol      = domain.MustParseAddress("0x3333333333333333333333333333333333333333")
	manager    = domain.MustParseAddress("0x4444444444444444444444444444444444444444")
)

const (
	dailySupply = 10
	price       = 100
	assetRef    = "usdc"
)

type AllowanceServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	asset   *payment.Asset
	minter  *fakeMinter
	authz   *fakeAuthorizer
	audit   *auditmemory.InMemoryStore
	metrics *metrics.Metrics
	tree    *merkle.Tree
	service *Service
}

func TestAllowanceServiceSuite(t *testing.T) {
	suite.Run(t, new(AllowanceServiceSuite))
}

func (s *AllowanceServiceSuite) SetupTest() {
	ctx := context.Background()
	s.store = store.NewInMemory()
	s.asset = payment.NewAsset(assetRef)
	s.Require().NoError(s.asset.Credit(ctx, alice, 10_000))
	s.asset.Approve(ctx, alice, ledger, math.MaxUint64)
	s.minter = &fakeMinter{}
	s.authz = &fakeAuthorizer{roles: map[domain.Address]domain.Role{manager: domain.RoleSaleManager}}
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	tree, err := merkle.NewAddressTree([]domain.Address{alice, bob})
	s.Require().NoError(err)
	s.tree = tree

	svc, err := New(s.store, s.minter, merkle.Verifier{}, payment.NewDirectory(s.asset), s.authz,
		s.config(tree.Root()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.audit),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *AllowanceServiceSuite) config(root merkle.Hash) models.Config {
	return models.Config{
		DeploymentTime: deployment,
		LedgerAddress:  ledger,
		Settings: models.Settings{
			DailySupply:     dailySupply,
			PricePerUnit:    price,
			PaymentReceiver: receiver,
			PaymentAsset:    assetRef,
			MembershipRoot:  root,
		},
	}
}

func (s *AllowanceServiceSuite) proof(addr domain.Address) []merkle.Hash {
	p, err := s.tree.AddressProof(addr)
	s.Require().NoError(err)
	return p
}

func onDay(days int) context.Context {
	return requestcontext.WithTime(context.Background(), deployment.Add(time.Duration(days)*models.Day+time.Hour))
}

// =============================================================================
// Fakes
// =============================================================================

type mintCall struct {
	minter, to domain.Address
	quantity   uint64
}

type fakeMinter struct {
	calls  []mintCall
	nextID domain.TokenID
	err    error
}

func (f *fakeMinter) Mint(_ context.Context, minter, to domain.Address, quantity uint64) (domain.TokenID, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.calls = append(f.calls, mintCall{minter: minter, to: to, quantity: quantity})
	start := f.nextID
	f.nextID += domain.TokenID(quantity)
	return start, nil
}

type fakeAuthorizer struct {
	roles map[domain.Address]domain.Role
}

func (f *fakeAuthorizer) Require(_ context.Context, role domain.Role, account domain.Address) error {
	if f.roles[account] == role {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "missing role "+role.String())
}

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *AllowanceServiceSuite) TestNew() {
	dir := payment.NewDirectory(s.asset)
	cfg := s.config(s.tree.Root())

	s.Run("nil store returns error", func() {
		_, err := New(nil, s.minter, merkle.Verifier{}, dir, s.authz, cfg)
		s.ErrorContains(err, "allowance store is required")
	})

	s.Run("nil minter returns error", func() {
		_, err := New(s.store, nil, merkle.Verifier{}, dir, s.authz, cfg)
		s.ErrorContains(err, "minter is required")
	})

	s.Run("nil verifier returns error", func() {
		_, err := New(s.store, s.minter, nil, dir, s.authz, cfg)
		s.ErrorContains(err, "proof verifier is required")
	})

	s.Run("nil payment directory returns error", func() {
		_, err := New(s.store, s.minter, merkle.Verifier{}, nil, s.authz, cfg)
		s.ErrorContains(err, "payment directory is required")
	})

	s.Run("nil authorizer returns error", func() {
		_, err := New(s.store, s.minter, merkle.Verifier{}, dir, nil, cfg)
		s.ErrorContains(err, "authorizer is required")
	})

	s.Run("missing ledger address is rejected", func() {
		bad := cfg
		bad.LedgerAddress = domain.NullAddress
		_, err := New(s.store, s.minter, merkle.Verifier{}, dir, s.authz, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

// =============================================================================
// Capacity
// =============================================================================

func (s *AllowanceServiceSuite) TestCapacityMonotonicity() {
	var previous uint64
	for day := 0; day <= 5; day++ {
		got, err := s.service.GetNumOfPurchasableTokens(onDay(day))
		s.Require().NoError(err)
		s.Equal(uint64(day*dailySupply), got, "day %d", day)
		s.GreaterOrEqual(got, previous)
		previous = got
	}
}

func (s *AllowanceServiceSuite) TestPurchaseConsumesCapacity() {
	_, err := s.service.Purchase(onDay(2), alice, bob, 15, s.proof(bob))
	s.Require().NoError(err)

	got, err := s.service.GetNumOfPurchasableTokens(onDay(2))
	s.Require().NoError(err)
	s.Equal(uint64(5), got)

	_, err = s.service.Purchase(onDay(2), alice, bob, 6, s.proof(bob))
	s.ErrorIs(err, models.ErrNoPurchasableTokens)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AllowanceServiceSuite) TestLoweringSupplyFloorsAvailableAtZero() {
	_, err := s.service.Purchase(onDay(3), alice, bob, 25, s.proof(bob))
	s.Require().NoError(err)
	s.Require().NoError(s.service.SetDailySupply(context.Background(), manager, 1))

	got, err := s.service.GetNumOfPurchasableTokens(onDay(3))
	s.Require().NoError(err)
	s.Zero(got)
}

// =============================================================================
// Purchase check order
// =============================================================================

func (s *AllowanceServiceSuite) TestPurchaseCheckOrder() {
	s.Run("capacity is checked before the proof", func() {
		_, err := s.service.Purchase(onDay(0), alice, carol, 1, nil)
		s.ErrorIs(err, models.ErrNoPurchasableTokens)
	})

	s.Run("zero amount is checked before the proof", func() {
		_, err := s.service.Purchase(onDay(1), alice, carol, 0, nil)
		s.ErrorIs(err, models.ErrZeroAmountNotAllowed)
	})

	s.Run("zero amount with no capacity reports zero amount", func() {
		_, err := s.service.Purchase(onDay(0), alice, bob, 0, s.proof(bob))
		s.ErrorIs(err, models.ErrZeroAmountNotAllowed)
	})
}

func (s *AllowanceServiceSuite) TestProofGate() {
	ctx := onDay(1)

	s.Run("receiver outside the allowlist is rejected", func() {
		_, err := s.service.Purchase(ctx, alice, carol, 1, s.proof(bob))
		s.ErrorIs(err, models.ErrReceiverNotWhitelisted)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		allowance, err := s.service.AllowanceOf(ctx, carol)
		s.Require().NoError(err)
		s.Zero(allowance)

		events, err := s.audit.ListByAction(ctx, audit.EventProofRejected)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(carol.String(), events[0].Fields["recipient"])
		s.Equal(1.0, testutil.ToFloat64(s.metrics.RejectionsTotal.WithLabelValues("purchase", "proof")))
	})

	s.Run("proof is bound to the recipient, not the buyer", func() {
		_, err := s.service.Purchase(ctx, carol, bob, 1, s.proof(alice))
		s.ErrorIs(err, models.ErrReceiverNotWhitelisted)
	})

	s.Run("new root takes effect immediately", func() {
		tree, err := merkle.NewAddressTree([]domain.Address{carol})
		s.Require().NoError(err)
		s.Require().NoError(s.service.SetMembershipRoot(ctx, manager, tree.Root()))

		_, err = s.service.Purchase(ctx, alice, bob, 1, s.proof(bob))
		s.ErrorIs(err, models.ErrReceiverNotWhitelisted)

		carolProof, err := tree.AddressProof(carol)
		s.Require().NoError(err)
		_, err = s.service.Purchase(ctx, alice, carol, 1, carolProof)
		s.NoError(err)
	})
}

// =============================================================================
// Purchase effects and payment
// =============================================================================

func (s *AllowanceServiceSuite) TestPurchase() {
	ctx := onDay(1)

	receipt, err := s.service.Purchase(ctx, alice, bob, 3, s.proof(bob))
	s.Require().NoError(err)
	s.Equal(&models.PurchaseReceipt{
		Buyer:          alice,
		Recipient:      bob,
		Amount:         3,
		Cost:           300,
		Allowance:      3,
		PurchasedTotal: 3,
	}, receipt)

	allowance, err := s.service.AllowanceOf(ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(3), allowance)
	s.Equal(uint64(9_700), s.asset.BalanceOf(ctx, alice))
	s.Equal(uint64(300), s.asset.BalanceOf(ctx, receiver))

	events, err := s.audit.ListByAction(ctx, audit.EventAllowancePurchased)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("300", events[0].Fields["cost"])
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PurchasesTotal))
	s.Equal(300.0, testutil.ToFloat64(s.metrics.PaymentVolumeTotal.WithLabelValues(assetRef)))
}

func (s *AllowanceServiceSuite) TestPaymentFailureRollsBackEffects() {
	ctx := onDay(1)

	s.Run("buyer without approval", func() {
		_, err := s.service.Purchase(ctx, carol, bob, 2, s.proof(bob))
		s.ErrorIs(err, payment.ErrInsufficientAllowance)
		s.True(dErrors.HasCode(err, dErrors.CodeDependency))
	})

	s.Run("buyer without balance", func() {
		s.asset.Approve(ctx, carol, ledger, math.MaxUint64)
		_, err := s.service.Purchase(ctx, carol, bob, 2, s.proof(bob))
		s.ErrorIs(err, payment.ErrInsufficientBalance)
	})

	allowance, err := s.service.AllowanceOf(ctx, bob)
	s.Require().NoError(err)
	s.Zero(allowance)
	stats, err := s.service.Stats(ctx)
	s.Require().NoError(err)
	s.Zero(stats.PurchasedTotal)
	s.Equal(uint64(dailySupply), stats.Available)
	s.Zero(s.asset.BalanceOf(ctx, receiver))

	reverted, err := s.audit.ListByAction(ctx, audit.EventLedgerReverted)
	s.Require().NoError(err)
	s.Len(reverted, 2)
	purchased, err := s.audit.ListByAction(ctx, audit.EventAllowancePurchased)
	s.Require().NoError(err)
	s.Empty(purchased)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.RejectionsTotal.WithLabelValues("purchase", "payment")))
}

func (s *AllowanceServiceSuite) TestCostOverflowIsRejected() {
	s.Require().NoError(s.service.SetPricePerUnit(context.Background(), manager, math.MaxUint64))

	_, err := s.service.Purchase(onDay(1), alice, bob, 2, s.proof(bob))
	s.ErrorIs(err, models.ErrArithmeticOverflow)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AllowanceServiceSuite) TestFreePurchaseSucceeds() {
	s.Require().NoError(s.service.SetPricePerUnit(context.Background(), manager, 0))

	receipt, err := s.service.Purchase(onDay(1), carol, bob, 2, s.proof(bob))
	s.Require().NoError(err)
	s.Zero(receipt.Cost)
}

// =============================================================================
// Redeem
// =============================================================================

func (s *AllowanceServiceSuite) TestRedeem() {
	ctx := onDay(1)
	_, err := s.service.Purchase(ctx, alice, bob, 3, s.proof(bob))
	s.Require().NoError(err)

	receipt, err := s.service.Redeem(ctx, carol, bob, 2)
	s.Require().NoError(err)
	s.Equal(uint64(1), receipt.Allowance)
	s.Equal(domain.TokenID(0), receipt.FirstTokenID)
	s.Equal([]mintCall{{minter: ledger, to: bob, quantity: 2}}, s.minter.calls)

	allowance, err := s.service.AllowanceOf(ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(1), allowance)
}

func (s *AllowanceServiceSuite) TestRedeemUnderflowGuard() {
	ctx := onDay(1)
	_, err := s.service.Purchase(ctx, alice, bob, 3, s.proof(bob))
	s.Require().NoError(err)

	_, err = s.service.Redeem(ctx, bob, bob, 4)
	s.ErrorIs(err, models.ErrNotEnoughMintableTokens)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	allowance, err := s.service.AllowanceOf(ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(3), allowance)
	s.Empty(s.minter.calls)
}

func (s *AllowanceServiceSuite) TestRedeemZeroAmount() {
	_, err := s.service.Redeem(onDay(1), bob, bob, 0)
	s.ErrorIs(err, models.ErrZeroAmountNotAllowed)
	s.Empty(s.minter.calls)
}

func (s *AllowanceServiceSuite) TestMintFailureRollsBackEffect() {
	ctx := onDay(1)
	_, err := s.service.Purchase(ctx, alice, bob, 3, s.proof(bob))
	s.Require().NoError(err)

	s.minter.err = errors.New("registry unavailable")
	_, err = s.service.Redeem(ctx, bob, bob, 2)
	s.True(dErrors.HasCode(err, dErrors.CodeDependency))

	allowance, err := s.service.AllowanceOf(ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(3), allowance)

	reverted, err := s.audit.ListByAction(ctx, audit.EventLedgerReverted)
	s.Require().NoError(err)
	s.Require().Len(reverted, 1)
	s.Equal("redeem", reverted[0].Fields["op"])
}

func (s *AllowanceServiceSuite) TestAllowanceConservation() {
	ctx := onDay(4)
	var redeemed uint64

	steps := []struct {
		purchase  bool
		recipient domain.Address
		amount    uint64
	}{
		{true, bob, 7},
		{true, alice, 5},
		{false, bob, 3},
		{true, bob, 10},
		{false, alice, 5},
		{false, bob, 14},
		{true, alice, 1},
	}
	for _, step := range steps {
		if step.purchase {
			_, err := s.service.Purchase(ctx, alice, step.recipient, step.amount, s.proof(step.recipient))
			s.Require().NoError(err)
		} else {
			_, err := s.service.Redeem(ctx, step.recipient, step.recipient, step.amount)
			s.Require().NoError(err)
			redeemed += step.amount
		}

		stats, err := s.service.Stats(ctx)
		s.Require().NoError(err)
		a, _ := s.service.AllowanceOf(ctx, alice)
		b, _ := s.service.AllowanceOf(ctx, bob)
		s.Equal(stats.PurchasedTotal, a+b+redeemed)
	}
	s.Equal(uint64(22), redeemed)
}

// =============================================================================
// Admin setters
// =============================================================================

func (s *AllowanceServiceSuite) TestSettersRequireSaleManager() {
	ctx := context.Background()
	s.True(dErrors.HasCode(s.service.SetPricePerUnit(ctx, alice, 1), dErrors.CodeForbidden))
	s.True(dErrors.HasCode(s.service.SetDailySupply(ctx, alice, 1), dErrors.CodeForbidden))
	s.True(dErrors.HasCode(s.service.SetPaymentReceiver(ctx, alice, carol), dErrors.CodeForbidden))
	s.True(dErrors.HasCode(s.service.SetPaymentAsset(ctx, alice, assetRef), dErrors.CodeForbidden))
	s.True(dErrors.HasCode(s.service.SetMembershipRoot(ctx, alice, merkle.Hash{}), dErrors.CodeForbidden))

	stats, err := s.service.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(price), stats.Settings.PricePerUnit)
}

func (s *AllowanceServiceSuite) TestSetters() {
	ctx := context.Background()

	s.Run("price and supply are persisted and audited", func() {
		s.Require().NoError(s.service.SetPricePerUnit(ctx, manager, 250))
		s.Require().NoError(s.service.SetDailySupply(ctx, manager, 4))

		stats, err := s.service.Stats(onDay(2))
		s.Require().NoError(err)
		s.Equal(uint64(250), stats.Settings.PricePerUnit)
		s.Equal(uint64(8), stats.Capacity)

		events, err := s.audit.ListByAction(ctx, audit.EventSaleConfigChanged)
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("receiver cannot be the null address", func() {
		err := s.service.SetPaymentReceiver(ctx, manager, domain.NullAddress)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("payment goes to the new receiver", func() {
		s.Require().NoError(s.service.SetPaymentReceiver(ctx, manager, carol))
		_, err := s.service.Purchase(onDay(1), alice, bob, 1, s.proof(bob))
		s.Require().NoError(err)
		s.Equal(uint64(250), s.asset.BalanceOf(ctx, carol))
	})

	s.Run("unknown asset is rejected", func() {
		err := s.service.SetPaymentAsset(ctx, manager, "dai")
		s.ErrorIs(err, payment.ErrUnknownAsset)

		stats, err := s.service.Stats(ctx)
		s.Require().NoError(err)
		s.Equal(assetRef, stats.Settings.PaymentAsset)
	})
}

// =============================================================================
// Ordering and store failures (gomock)
// =============================================================================

func (s *AllowanceServiceSuite) newMockedService(ctrl *gomock.Controller) (*Service, *mocks.MockStore, *mocks.MockProofVerifier, *mocks.MockPaymentDirectory, *mocks.MockMinter) {
	st := mocks.NewMockStore(ctrl)
	verifier := mocks.NewMockProofVerifier(ctrl)
	payments := mocks.NewMockPaymentDirectory(ctrl)
	minter := mocks.NewMockMinter(ctrl)
	svc, err := New(st, minter, verifier, payments, s.authz, s.config(merkle.Hash{1}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.audit))
	s.Require().NoError(err)
	return svc, st, verifier, payments, minter
}

func runTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (s *AllowanceServiceSuite) TestPurchaseChecksEffectsInteractions() {
	ctrl := gomock.NewController(s.T())
	svc, st, verifier, payments, _ := s.newMockedService(ctrl)
	transferer := mocks.NewMockTransferer(ctrl)
	proof := []merkle.Hash{{2}}

	gomock.InOrder(
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx),
		st.EXPECT().GetState(gomock.Any()).Return(&models.State{PurchasedTotal: 4, Settings: s.config(merkle.Hash{1}).Settings}, nil),
		verifier.EXPECT().Verify(proof, merkle.Hash{1}, bob).Return(true),
		payments.EXPECT().Resolve(assetRef).Return(transferer, nil),
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(1), nil),
		st.EXPECT().SaveState(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, state models.State) error {
			s.Equal(uint64(6), state.PurchasedTotal)
			return nil
		}),
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(3)).Return(nil),
		transferer.EXPECT().TransferFrom(gomock.Any(), ledger, alice, receiver, uint64(200)).Return(nil),
	)

	receipt, err := svc.Purchase(onDay(1), alice, bob, 2, proof)
	s.Require().NoError(err)
	s.Equal(uint64(3), receipt.Allowance)
}

func (s *AllowanceServiceSuite) TestRedeemEffectBeforeMint() {
	ctrl := gomock.NewController(s.T())
	svc, st, _, _, minter := s.newMockedService(ctrl)

	gomock.InOrder(
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx),
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(5), nil),
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(2)).Return(nil),
		minter.EXPECT().Mint(gomock.Any(), ledger, bob, uint64(3)).Return(domain.TokenID(7), nil),
	)

	receipt, err := svc.Redeem(onDay(1), bob, bob, 3)
	s.Require().NoError(err)
	s.Equal(domain.TokenID(7), receipt.FirstTokenID)
}

func (s *AllowanceServiceSuite) TestStoreFailures() {
	s.Run("state load failure is internal", func() {
		ctrl := gomock.NewController(s.T())
		svc, st, _, _, _ := s.newMockedService(ctrl)
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx)
		st.EXPECT().GetState(gomock.Any()).Return(nil, errors.New("connection reset"))

		_, err := svc.Purchase(onDay(1), alice, bob, 1, nil)
		s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	})

	s.Run("allowance write failure stops before the mint", func() {
		ctrl := gomock.NewController(s.T())
		svc, st, _, _, minter := s.newMockedService(ctrl)
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx)
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(5), nil)
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(4)).Return(errors.New("disk full"))
		minter.EXPECT().Mint(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Redeem(onDay(1), bob, bob, 1)
		s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	})
}

// =============================================================================
// Interactions outside the store transaction
// =============================================================================
// Justification: the payment asset and the minter cannot join a SQL
// transaction. Effects are committed before the interaction, so a commit
// failure must stop before it, and an interaction failure must be undone by a
// second transaction.

func commitFails(ctx context.Context, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return errors.New("commit: connection reset")
}

func (s *AllowanceServiceSuite) TestCommitFailureSkipsInteraction() {
	s.Run("redeem never mints", func() {
		ctrl := gomock.NewController(s.T())
		svc, st, _, _, minter := s.newMockedService(ctrl)
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(commitFails)
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(5), nil)
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(4)).Return(nil)
		minter.EXPECT().Mint(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Redeem(onDay(1), bob, bob, 1)
		s.ErrorContains(err, "commit")
	})

	s.Run("purchase never charges", func() {
		ctrl := gomock.NewController(s.T())
		svc, st, verifier, payments, _ := s.newMockedService(ctrl)
		transferer := mocks.NewMockTransferer(ctrl)
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(commitFails)
		st.EXPECT().GetState(gomock.Any()).Return(nil, sentinel.ErrNotFound)
		verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), bob).Return(true)
		payments.EXPECT().Resolve(assetRef).Return(transferer, nil)
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(0), nil)
		st.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil)
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(2)).Return(nil)
		transferer.EXPECT().TransferFrom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Purchase(onDay(1), alice, bob, 2, nil)
		s.ErrorContains(err, "commit")
	})
}

func (s *AllowanceServiceSuite) TestMintFailureRevertsInSecondTransaction() {
	ctrl := gomock.NewController(s.T())
	svc, st, _, _, minter := s.newMockedService(ctrl)
	mintErr := errors.New("registry unavailable")

	gomock.InOrder(
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx),
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(5), nil),
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(2)).Return(nil),
		minter.EXPECT().Mint(gomock.Any(), ledger, bob, uint64(3)).Return(domain.TokenID(0), mintErr),
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx),
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(2), nil),
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(5)).Return(nil),
	)

	_, err := svc.Redeem(onDay(1), bob, bob, 3)
	s.ErrorIs(err, mintErr)
	s.Equal(dErrors.CodeDependency, dErrors.CodeOf(err))
}

func (s *AllowanceServiceSuite) TestPaymentFailureRevertsInSecondTransaction() {
	ctrl := gomock.NewController(s.T())
	svc, st, verifier, payments, _ := s.newMockedService(ctrl)
	transferer := mocks.NewMockTransferer(ctrl)
	settings := s.config(merkle.Hash{1}).Settings

	gomock.InOrder(
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx),
		st.EXPECT().GetState(gomock.Any()).Return(&models.State{PurchasedTotal: 4, Settings: settings}, nil),
		verifier.EXPECT().Verify(gomock.Any(), merkle.Hash{1}, bob).Return(true),
		payments.EXPECT().Resolve(assetRef).Return(transferer, nil),
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(1), nil),
		st.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil),
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(3)).Return(nil),
		transferer.EXPECT().TransferFrom(gomock.Any(), ledger, alice, receiver, uint64(200)).Return(payment.ErrInsufficientBalance),
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx),
		st.EXPECT().GetState(gomock.Any()).Return(&models.State{PurchasedTotal: 6, Settings: settings}, nil),
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(3), nil),
		st.EXPECT().SaveState(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, state models.State) error {
			s.Equal(uint64(4), state.PurchasedTotal)
			return nil
		}),
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(1)).Return(nil),
	)

	_, err := svc.Purchase(onDay(1), alice, bob, 2, nil)
	s.ErrorIs(err, payment.ErrInsufficientBalance)
	s.Equal(dErrors.CodeDependency, dErrors.CodeOf(err))
}

func (s *AllowanceServiceSuite) TestRevertFailureIsInternalAndAudited() {
	ctrl := gomock.NewController(s.T())
	svc, st, _, _, minter := s.newMockedService(ctrl)
	mintErr := errors.New("registry unavailable")
	dbErr := errors.New("database unavailable")

	gomock.InOrder(
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(runTx),
		st.EXPECT().GetAllowance(gomock.Any(), bob).Return(uint64(5), nil),
		st.EXPECT().SetAllowance(gomock.Any(), bob, uint64(4)).Return(nil),
		minter.EXPECT().Mint(gomock.Any(), ledger, bob, uint64(1)).Return(domain.TokenID(0), mintErr),
		st.EXPECT().RunInTx(gomock.Any(), gomock.Any()).Return(dbErr),
	)

	_, err := svc.Redeem(onDay(1), bob, bob, 1)
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	s.ErrorIs(err, mintErr)
	s.ErrorIs(err, dbErr)

	events, err := s.audit.ListByAction(context.Background(), audit.EventLedgerRevertFailed)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("redeem", events[0].Fields["op"])
}
