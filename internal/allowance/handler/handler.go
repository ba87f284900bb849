package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lockmint/internal/allowance/models"
	"lockmint/internal/merkle"
	"lockmint/internal/platform/middleware"
	"lockmint/internal/transport/http/shared"
	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
)

// Service is the allowance ledger surface the handler needs.
type Service interface {
	Purchase(ctx context.Context, buyer, recipient domain.Address, amount uint64, proof []merkle.Hash) (*models.PurchaseReceipt, error)
	Redeem(ctx context.Context, caller, recipient domain.Address, amount uint64) (*models.RedeemReceipt, error)
	GetNumOfPurchasableTokens(ctx context.Context) (uint64, error)
	AllowanceOf(ctx context.Context, account domain.Address) (uint64, error)
	Stats(ctx context.Context) (*models.Stats, error)
	SetPricePerUnit(ctx context.Context, caller domain.Address, price uint64) error
	SetDailySupply(ctx context.Context, caller domain.Address, supply uint64) error
	SetPaymentReceiver(ctx context.Context, caller domain.Address, receiver domain.Address) error
	SetPaymentAsset(ctx context.Context, caller domain.Address, ref string) error
	SetMembershipRoot(ctx context.Context, caller domain.Address, root merkle.Hash) error
}

// Handler serves the allowance ledger endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	jwtValidator middleware.JWTValidator
}

func New(service Service, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		jwtValidator: jwtValidator,
	}
}

// Register registers the allowance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/allowance/purchasable", h.handlePurchasable)
	r.Get("/allowance/stats", h.handleStats)
	r.Get("/allowance/{address}", h.handleAllowanceOf)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/allowance/purchase", h.handlePurchase)
		r.Post("/allowance/redeem", h.handleRedeem)

		r.Put("/admin/allowance/price", h.handleSetPrice)
		r.Put("/admin/allowance/daily-supply", h.handleSetDailySupply)
		r.Put("/admin/allowance/receiver", h.handleSetReceiver)
		r.Put("/admin/allowance/asset", h.handleSetAsset)
		r.Put("/admin/allowance/root", h.handleSetRoot)
	})
}

func (h *Handler) handlePurchasable(w http.ResponseWriter, r *http.Request) {
	available, err := h.service.GetNumOfPurchasableTokens(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "get purchasable", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]uint64{"purchasable": available})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "get stats", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleAllowanceOf(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid address"))
		return
	}
	amount, err := h.service.AllowanceOf(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, r, "get allowance", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"address":   account,
		"allowance": amount,
	})
}

type purchaseRequest struct {
	Recipient domain.Address `json:"recipient"`
	Amount    uint64         `json:"amount"`
	Proof     []merkle.Hash  `json:"proof"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Recipient.IsZero() {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "recipient is required"))
		return
	}
	receipt, err := h.service.Purchase(r.Context(), middleware.GetActor(r), req.Recipient, req.Amount, req.Proof)
	if err != nil {
		h.writeServiceError(w, r, "purchase", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, receipt)
}

type redeemRequest struct {
	Recipient domain.Address `json:"recipient"`
	Amount    uint64         `json:"amount"`
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	recipient := req.Recipient
	if recipient.IsZero() {
		recipient = middleware.GetActor(r)
	}
	receipt, err := h.service.Redeem(r.Context(), middleware.GetActor(r), recipient, req.Amount)
	if err != nil {
		h.writeServiceError(w, r, "redeem", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PricePerUnit uint64 `json:"price_per_unit"`
	}
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.writeUpdate(w, r, "set price", h.service.SetPricePerUnit(r.Context(), middleware.GetActor(r), req.PricePerUnit))
}

func (h *Handler) handleSetDailySupply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DailySupply uint64 `json:"daily_supply"`
	}
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.writeUpdate(w, r, "set daily supply", h.service.SetDailySupply(r.Context(), middleware.GetActor(r), req.DailySupply))
}

func (h *Handler) handleSetReceiver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentReceiver domain.Address `json:"payment_receiver"`
	}
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.writeUpdate(w, r, "set payment receiver", h.service.SetPaymentReceiver(r.Context(), middleware.GetActor(r), req.PaymentReceiver))
}

func (h *Handler) handleSetAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentAsset string `json:"payment_asset"`
	}
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.writeUpdate(w, r, "set payment asset", h.service.SetPaymentAsset(r.Context(), middleware.GetActor(r), req.PaymentAsset))
}

func (h *Handler) handleSetRoot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MembershipRoot merkle.Hash `json:"membership_root"`
	}
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.writeUpdate(w, r, "set membership root", h.service.SetMembershipRoot(r.Context(), middleware.GetActor(r), req.MembershipRoot))
}

func (h *Handler) writeUpdate(w http.ResponseWriter, r *http.Request, op string, err error) {
	if err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
