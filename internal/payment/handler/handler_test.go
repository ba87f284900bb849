package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"lockmint/internal/authz"
	"lockmint/internal/payment"
	"lockmint/internal/platform/middleware"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
	"lockmint/pkg/testutil"
)

var (
	admin  = domain.MustParseAddress("0x00000000000000000000000000000000000000ad")
	holder = domain.MustParseAddress("0x1111111111111111111111111111111111111111")
	ledger = domain.MustParseAddress("0x000000000000000000000000000000000000face")
)

type tokenValidator map[string]domain.Address

func (v tokenValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	account, ok := v[token]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.JWTClaims{Account: account}, nil
}

type PaymentHandlerSuite struct {
	suite.Suite
	asset  *payment.Asset
	router chi.Router
}

func TestPaymentHandlerSuite(t *testing.T) {
	suite.Run(t, new(PaymentHandlerSuite))
}

func (s *PaymentHandlerSuite) SetupTest() {
	s.asset = payment.NewAsset("usdc")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(payment.NewDirectory(s.asset), authz.New(admin),
		tokenValidator{"admin-token": admin, "holder-token": holder}, logger)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *PaymentHandlerSuite) as(token string, req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (s *PaymentHandlerSuite) TestCreditRequiresAdmin() {
	body := `{"account":"` + holder.String() + `","amount":500}`

	rr := testutil.DoRequest(s.router, s.as("holder-token",
		testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/payments/usdc/credit", body)))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

	rr = testutil.DoRequest(s.router, s.as("admin-token",
		testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/payments/usdc/credit", body)))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	s.Equal(uint64(500), s.asset.BalanceOf(context.Background(), holder))
}

func (s *PaymentHandlerSuite) TestBalance() {
	s.Require().NoError(s.asset.Credit(context.Background(), holder, 42))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/payments/usdc/balances/"+holder.String()))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "balance", 42.0)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/payments/dai/balances/"+holder.String()))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *PaymentHandlerSuite) TestApproveUsesCallerAsOwner() {
	rr := testutil.DoRequest(s.router, s.as("holder-token", testutil.NewRequestWithBody(s.T(), http.MethodPut,
		"/payments/usdc/approvals", `{"spender":"`+ledger.String()+`","amount":1000}`)))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	s.Equal(uint64(1000), s.asset.Allowance(context.Background(), holder, ledger))

	rr = testutil.DoRequest(s.router, s.as("holder-token", testutil.NewRequestWithBody(s.T(), http.MethodPut,
		"/payments/usdc/approvals", `{"amount":1}`)))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}
