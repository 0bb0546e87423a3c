package app

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/ledger"
	"github.com/odyssey-erp/odyssey-bank/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

func TestErrorTable(t *testing.T) {
	rp := NewResponder(nil)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{httpx.NewValidationError("amount", "is required"), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{ledger.ErrInvalidAmount, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{accounts.ErrBalanceOverflow, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{accounts.ErrEmailAlreadyExists, http.StatusBadRequest, "EMAIL_EXISTS"},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{shared.ErrUnauthenticated, http.StatusUnauthorized, "INVALID_TOKEN"},
		{ledger.ErrAccountNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
		{ledger.ErrRecipientNotFound, http.StatusNotFound, "RECIPIENT_NOT_FOUND"},
		{ledger.ErrInvalidRecipient, http.StatusBadRequest, "INVALID_RECIPIENT"},
		{ledger.ErrInsufficientFunds, http.StatusBadRequest, "INSUFFICIENT_FUNDS"},
		{ledger.ErrNotEligible, http.StatusForbidden, "NOT_NATURAL_PERSON"},
		{shared.ErrIdempotencyConflict, http.StatusConflict, "DUPLICATE_REQUEST"},
		{fmt.Errorf("%w: transfer: %w", ledger.ErrStorage, errors.New("conn reset")), http.StatusInternalServerError, "DATABASE_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code+"/"+tc.err.Error(), func(t *testing.T) {
			spec := rp.Resolve(tc.err)
			assert.Equal(t, tc.status, spec.Status)
			assert.Equal(t, tc.code, spec.Code)
			assert.NotEmpty(t, spec.Message)
		})
	}
}

func TestErrorTableCoversEveryLedgerError(t *testing.T) {
	rp := NewResponder(nil)
	for _, err := range []error{
		ledger.ErrAccountNotFound,
		ledger.ErrRecipientNotFound,
		ledger.ErrInvalidRecipient,
		ledger.ErrInsufficientFunds,
		ledger.ErrNotEligible,
		ledger.ErrInvalidAmount,
		ledger.ErrBalanceLimit,
		ledger.ErrStorage,
	} {
		assert.NotEqual(t, httpx.Internal.Code, rp.Resolve(fmt.Errorf("wrapped: %w", err)).Code, err.Error())
	}
}
