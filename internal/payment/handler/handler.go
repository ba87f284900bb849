package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lockmint/internal/payment"
	"lockmint/internal/platform/middleware"
	"lockmint/internal/transport/http/shared"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
)

// Assets looks up registered payment assets.
type Assets interface {
	Asset(ref string) (*payment.Asset, error)
}

// Authorizer checks role membership.
type Authorizer interface {
	Require(ctx context.Context, role domain.Role, account domain.Address) error
}

// Handler exposes balances and approvals of the reference payment assets.
type Handler struct {
	logger       *slog.Logger
	assets       Assets
	authorizer   Authorizer
	jwtValidator middleware.JWTValidator
}

func New(assets Assets, authorizer Authorizer, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		assets:       assets,
		authorizer:   authorizer,
		jwtValidator: jwtValidator,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/payments/{asset}/balances/{address}", h.handleBalance)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Put("/payments/{asset}/approvals", h.handleApprove)
		r.Post("/admin/payments/{asset}/credit", h.handleCredit)
	})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.asset(w, r)
	if !ok {
		return
	}
	account, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid address"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"asset":   asset.Ref(),
		"address": account,
		"balance": asset.BalanceOf(r.Context(), account),
	})
}

type approveRequest struct {
	Spender domain.Address `json:"spender"`
	Amount  uint64         `json:"amount"`
}

// handleApprove lets the caller authorize a spender, typically the ledger.
func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.asset(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Spender.IsZero() {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "spender is required"))
		return
	}
	asset.Approve(r.Context(), middleware.GetActor(r), req.Spender, req.Amount)
	w.WriteHeader(http.StatusNoContent)
}

type creditRequest struct {
	Account domain.Address `json:"account"`
	Amount  uint64         `json:"amount"`
}

func (h *Handler) handleCredit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.authorizer.Require(ctx, domain.RoleAdmin, middleware.GetActor(r)); err != nil {
		shared.WriteError(w, err)
		return
	}
	asset, ok := h.asset(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Account.IsZero() {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "account is required"))
		return
	}
	if err := asset.Credit(ctx, req.Account, req.Amount); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "payment asset credited",
		"asset", asset.Ref(),
		"account", req.Account,
		"amount", req.Amount,
		"request_id", middleware.GetRequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) asset(w http.ResponseWriter, r *http.Request) (*payment.Asset, bool) {
	asset, err := h.assets.Asset(chi.URLParam(r, "asset"))
	if err != nil {
		shared.WriteError(w, err)
		return nil, false
	}
	return asset, true
}
