package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
	respond        *httpx.Responder
	loginLimit     int
}

// NewHandler constructs a Handler instance. loginLimit caps login attempts
// per client IP and minute; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, validate *validator.Validate, respond *httpx.Responder, loginLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validate,
		respond:        respond,
		loginLimit:     loginLimit,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.loginLimit > 0 {
			r.Use(httprate.Limit(h.loginLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Failure(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many login attempts", nil)
				}),
			))
		}
		r.Post("/login", h.handleLogin)
	})
	r.Group(func(r chi.Router) {
		r.Use(Middleware(h.service, h.respond))
		r.Post("/logout", h.handleLogout)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, h.validator, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	result, sess, err := h.service.Login(r.Context(), req.Email, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.sessionManager.WriteCookies(w, sess)
	h.logger.Info("login", slog.Int64("account_id", result.User.ID))
	httpx.Success(w, http.StatusOK, "Login successful", result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	acc, _ := accounts.FromContext(r.Context())
	if sess == nil {
		h.respond.Error(w, r, shared.ErrUnauthenticated)
		return
	}
	if err := h.service.Logout(r.Context(), acc.ID, sess.ID); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.sessionManager.ClearCookies(w)
	httpx.Success(w, http.StatusOK, "Logout successful", nil)
}
