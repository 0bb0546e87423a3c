package ledger

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// IdempotencyHeader lets clients retry a mutation without applying it twice.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the ledger operations under /operation.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	validate *validator.Validate
	respond  *httpx.Responder
	authn    func(http.Handler) http.Handler
}

// NewHandler builds the operation handler. Every route requires authn.
func NewHandler(logger *slog.Logger, engine *Engine, validate *validator.Validate, respond *httpx.Responder, authn func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, engine: engine, validate: validate, respond: respond, authn: authn}
}

// MountRoutes registers operation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authn)
		r.Post("/deposit", h.deposit)
		r.Post("/withdraw", h.withdraw)
		r.Post("/transfer", h.transfer)
		r.Get("/balance", h.balance)
		r.Get("/history", h.history)
	})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
}

type transferRequest struct {
	RecipientID int64           `json:"recipient_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount" validate:"money"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (accounts.Account, bool) {
	acc, ok := accounts.FromContext(r.Context())
	if !ok {
		h.respond.Error(w, r, shared.ErrUnauthenticated)
	}
	return acc, ok
}

// withIdempotencyKey attaches the optional Idempotency-Key header, which must be a UUID.
func (h *Handler) withIdempotencyKey(r *http.Request) (context.Context, error) {
	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		return r.Context(), nil
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return nil, httpx.NewValidationError(IdempotencyHeader, "must be a UUID")
	}
	return ContextWithIdempotencyKey(r.Context(), id.String()), nil
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := httpx.DecodeJSON(r, h.validate, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	ctx, err := h.withIdempotencyKey(r)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	receipt, err := h.engine.Deposit(ctx, caller, req.Amount)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Deposit completed successfully", receipt)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := httpx.DecodeJSON(r, h.validate, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	ctx, err := h.withIdempotencyKey(r)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	receipt, err := h.engine.Withdraw(ctx, caller, req.Amount)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Withdrawal completed successfully", receipt)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := httpx.DecodeJSON(r, h.validate, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	ctx, err := h.withIdempotencyKey(r)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	receipt, err := h.engine.Transfer(ctx, caller, req.RecipientID, req.Amount)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Transfer completed successfully", receipt)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	balance, err := h.engine.GetBalance(r.Context(), caller.ID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Balance retrieved successfully", balanceResponse{Balance: balance})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	history, err := h.engine.GetHistory(r.Context(), caller.ID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Transaction history retrieved successfully", history)
}
