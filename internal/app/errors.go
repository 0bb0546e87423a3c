package app

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/ledger"
	"github.com/odyssey-erp/odyssey-bank/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

func rule(target error, status int, code, message string) httpx.ErrorRule {
	return httpx.ErrorRule{Target: target, ErrorSpec: httpx.ErrorSpec{Status: status, Code: code, Message: message}}
}

// ErrorRules is the error → response table of the public API. Order matters:
// the first rule whose target matches with errors.Is wins.
func ErrorRules() []httpx.ErrorRule {
	return []httpx.ErrorRule{
		rule(ledger.ErrInvalidAmount, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Amount must be positive with at most two decimal places"),
		rule(ledger.ErrBalanceLimit, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Amount would push the balance past the maximum allowed"),
		rule(accounts.ErrEmailAlreadyExists, http.StatusBadRequest, "EMAIL_EXISTS", "Email already registered"),
		rule(shared.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect email or password"),
		rule(shared.ErrUnauthenticated, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired authentication token"),
		rule(ledger.ErrRecipientNotFound, http.StatusNotFound, "RECIPIENT_NOT_FOUND", "Recipient not found"),
		rule(accounts.ErrAccountNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"),
		rule(ledger.ErrInvalidRecipient, http.StatusBadRequest, "INVALID_RECIPIENT", "Cannot transfer to yourself"),
		rule(ledger.ErrInsufficientFunds, http.StatusBadRequest, "INSUFFICIENT_FUNDS", "Insufficient funds"),
		rule(ledger.ErrNotEligible, http.StatusForbidden, "NOT_NATURAL_PERSON", "Operation available to natural persons only"),
		rule(shared.ErrIdempotencyConflict, http.StatusConflict, "DUPLICATE_REQUEST", "Request already processed"),
		rule(ledger.ErrStorage, http.StatusInternalServerError, "DATABASE_ERROR", "A database error occurred"),
	}
}

// NewResponder builds the responder shared by every handler.
func NewResponder(logger *slog.Logger) *httpx.Responder {
	return httpx.NewResponder(logger, ErrorRules()...)
}
