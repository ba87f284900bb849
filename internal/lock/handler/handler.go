package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lockmint/internal/lock/models"
	"lockmint/internal/platform/middleware"
	"lockmint/internal/transport/http/shared"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
)

// Service is the lock accounting surface the handler needs.
type Service interface {
	ToggleLock(ctx context.Context, caller domain.Address, tokenID domain.TokenID) (*models.LockInfo, error)
	GetLockInfo(ctx context.Context, tokenID domain.TokenID) (*models.LockInfo, error)
	IsTokenLocked(ctx context.Context, tokenID domain.TokenID) (bool, error)
	TokenURI(ctx context.Context, tokenID domain.TokenID) (string, error)
	SetPenaltyRate(ctx context.Context, caller domain.Address, rate uint64) error
}

// Transferer moves a contiguous batch of tokens through the guarded registry.
type Transferer interface {
	TransferFrom(ctx context.Context, operator, from, to domain.Address, startID domain.TokenID, quantity uint64) error
}

// Handler serves the token lock endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	transfers    Transferer
	jwtValidator middleware.JWTValidator
}

func New(service Service, transfers Transferer, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		transfers:    transfers,
		jwtValidator: jwtValidator,
	}
}

// Register registers the lock routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tokens/{id}/lock", h.handleGetLockInfo)
	r.Get("/tokens/{id}/locked", h.handleIsLocked)
	r.Get("/tokens/{id}/uri", h.handleTokenURI)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/tokens/{id}/lock/toggle", h.handleToggleLock)
		r.Post("/tokens/transfer", h.handleTransfer)
		r.Put("/admin/lock/penalty-rate", h.handleSetPenaltyRate)
	})
}

type lockInfoResponse struct {
	TokenID          string     `json:"token_id"`
	Locked           bool       `json:"locked"`
	Kind             string     `json:"kind"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	TotalTimeSeconds int64      `json:"total_time_seconds"`
}

func toLockInfoResponse(info *models.LockInfo) lockInfoResponse {
	resp := lockInfoResponse{
		TokenID:          info.TokenID.String(),
		Locked:           info.Locked,
		Kind:             info.Kind.String(),
		TotalTimeSeconds: int64(info.TotalTime / time.Second),
	}
	if info.Locked {
		start := info.StartTime
		resp.StartTime = &start
	}
	return resp
}

func (h *Handler) handleGetLockInfo(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	info, err := h.service.GetLockInfo(r.Context(), tokenID)
	if err != nil {
		h.writeServiceError(w, r, "get lock info", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toLockInfoResponse(info))
}

func (h *Handler) handleIsLocked(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	locked, err := h.service.IsTokenLocked(r.Context(), tokenID)
	if err != nil {
		h.writeServiceError(w, r, "is token locked", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"token_id": tokenID.String(),
		"locked":   locked,
	})
}

func (h *Handler) handleTokenURI(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	uri, err := h.service.TokenURI(r.Context(), tokenID)
	if err != nil {
		h.writeServiceError(w, r, "token uri", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"token_id": tokenID.String(),
		"uri":      uri,
	})
}

func (h *Handler) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	info, err := h.service.ToggleLock(r.Context(), middleware.GetActor(r), tokenID)
	if err != nil {
		h.writeServiceError(w, r, "toggle lock", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toLockInfoResponse(info))
}

type transferRequest struct {
	From     domain.Address `json:"from"`
	To       domain.Address `json:"to"`
	StartID  domain.TokenID `json:"start_id"`
	Quantity uint64         `json:"quantity"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.To.IsZero() {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "to is required"))
		return
	}
	err := h.transfers.TransferFrom(r.Context(), middleware.GetActor(r), req.From, req.To, req.StartID, req.Quantity)
	if err != nil {
		h.writeServiceError(w, r, "transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type penaltyRateRequest struct {
	Rate uint64 `json:"rate"`
}

func (h *Handler) handleSetPenaltyRate(w http.ResponseWriter, r *http.Request) {
	var req penaltyRateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.SetPenaltyRate(r.Context(), middleware.GetActor(r), req.Rate); err != nil {
		h.writeServiceError(w, r, "set penalty rate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) tokenID(w http.ResponseWriter, r *http.Request) (domain.TokenID, bool) {
	id, err := domain.ParseTokenID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid token id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, op+" failed",
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}
