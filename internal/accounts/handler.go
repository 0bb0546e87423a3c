package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-bank/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// Handler exposes registration and profile endpoints under /user.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	respond  *httpx.Responder
	authn    func(http.Handler) http.Handler
}

// NewHandler builds the account handler. authn guards the profile route.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, respond *httpx.Responder, authn func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, respond: respond, authn: authn}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register/natural", h.registerNatural)
	r.Post("/register/legal", h.registerLegal)
	r.Group(func(r chi.Router) {
		r.Use(h.authn)
		r.Get("/profile", h.profile)
	})
}

type personRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Address  string `json:"address" validate:"required"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
}

type naturalRequest struct {
	personRequest
	CPF string `json:"cpf" validate:"required,len=11,numeric"`
}

type legalRequest struct {
	personRequest
	CNPJ string `json:"cnpj" validate:"required,len=14,numeric"`
}

func (p personRequest) input(taxID string) RegisterInput {
	return RegisterInput{
		Name:     p.Name,
		Email:    p.Email,
		Password: p.Password,
		Address:  p.Address,
		City:     p.City,
		State:    p.State,
		TaxID:    taxID,
	}
}

type registeredResponse struct {
	ID int64 `json:"id"`
}

func (h *Handler) registerNatural(w http.ResponseWriter, r *http.Request) {
	var req naturalRequest
	if err := httpx.DecodeJSON(r, h.validate, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	acc, err := h.service.RegisterNatural(r.Context(), req.input(req.CPF))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "User registered successfully", registeredResponse{ID: acc.ID})
}

func (h *Handler) registerLegal(w http.ResponseWriter, r *http.Request) {
	var req legalRequest
	if err := httpx.DecodeJSON(r, h.validate, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	acc, err := h.service.RegisterLegal(r.Context(), req.input(req.CNPJ))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "User registered successfully", registeredResponse{ID: acc.ID})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	caller, ok := FromContext(r.Context())
	if !ok {
		h.respond.Error(w, r, shared.ErrUnauthenticated)
		return
	}
	profile, err := h.service.Profile(r.Context(), caller.ID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Profile retrieved successfully", profile)
}
