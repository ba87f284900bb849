package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lockmint/internal/platform/middleware"
	"lockmint/internal/transport/http/shared"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
)

// Roles is the role table surface the handler needs.
type Roles interface {
	HasRole(ctx context.Context, role domain.Role, account domain.Address) (bool, error)
	Grant(ctx context.Context, caller domain.Address, role domain.Role, account domain.Address) error
	Revoke(ctx context.Context, caller domain.Address, role domain.Role, account domain.Address) error
}

type Handler struct {
	logger       *slog.Logger
	roles        Roles
	jwtValidator middleware.JWTValidator
}

func New(roles Roles, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, roles: roles, jwtValidator: jwtValidator}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/roles/{role}/{address}", h.handleHasRole)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/admin/roles", h.handleGrant)
		r.Delete("/admin/roles", h.handleRevoke)
	})
}

func (h *Handler) handleHasRole(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(chi.URLParam(r, "role"))
	if !role.IsValid() {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown role"))
		return
	}
	account, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid address"))
		return
	}
	ok, err := h.roles.HasRole(r.Context(), role, account)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"role":     role,
		"address":  account,
		"has_role": ok,
	})
}

type roleRequest struct {
	Role    domain.Role    `json:"role"`
	Account domain.Address `json:"account"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.roles.Grant)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.roles.Revoke)
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request, apply func(context.Context, domain.Address, domain.Role, domain.Address) error) {
	var req roleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := apply(r.Context(), middleware.GetActor(r), req.Role, req.Account); err != nil {
		h.logger.WarnContext(r.Context(), "role change failed",
			"role", req.Role,
			"error", err.Error(),
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
