package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockmint/internal/authz"
	"lockmint/internal/platform/middleware"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
	"lockmint/pkg/testutil"
)

var (
	admin   = domain.MustParseAddress("0x00000000000000000000000000000000000000ad")
	manager = domain.MustParseAddress("0x3333333333333333333333333333333333333333")
)

type tokenValidator map[string]domain.Address

func (v tokenValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	account, ok := v[token]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.JWTClaims{Account: account}, nil
}

func setup(t *testing.T) (*authz.Table, chi.Router) {
	t.Helper()
	table := authz.New(admin)
	r := chi.NewRouter()
	New(table, tokenValidator{"admin-token": admin, "manager-token": manager},
		slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return table, r
}

func TestGrantAndRevoke(t *testing.T) {
	table, r := setup(t)
	body := `{"role":"sale_manager","account":"` + manager.String() + `"}`

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/admin/roles", body)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := testutil.DoRequest(r, req)
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	ok, err := table.HasRole(context.Background(), domain.RoleSaleManager, manager)
	require.NoError(t, err)
	assert.True(t, ok)

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/roles/sale_manager/"+manager.String()))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "has_role", true)

	req = testutil.NewRequestWithBody(t, http.MethodDelete, "/admin/roles", body)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr = testutil.DoRequest(r, req)
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	ok, err = table.HasRole(context.Background(), domain.RoleSaleManager, manager)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantRequiresAdmin(t *testing.T) {
	_, r := setup(t)
	req := testutil.NewRequestWithBody(t, http.MethodPost, "/admin/roles",
		`{"role":"admin","account":"`+manager.String()+`"}`)
	req.Header.Set("Authorization", "Bearer manager-token")
	rr := testutil.DoRequest(r, req)
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
}

func TestHasRoleRejectsUnknownRole(t *testing.T) {
	_, r := setup(t)
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/roles/owner/"+manager.String()))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}
