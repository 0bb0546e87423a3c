package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorSpec describes how an error kind is rendered on the wire.
type ErrorSpec struct {
	Status  int
	Code    string
	Message string
}

// ErrorRule binds a sentinel error to its wire representation.
type ErrorRule struct {
	Target error
	ErrorSpec
}

// Internal is the generic response for failures without a rule.
var Internal = ErrorSpec{
	Status:  http.StatusInternalServerError,
	Code:    "INTERNAL_SERVER_ERROR",
	Message: "An unexpected error occurred",
}

// Responder maps errors to envelopes through an explicit, ordered table.
type Responder struct {
	logger *slog.Logger
	rules  []ErrorRule
}

// NewResponder constructs a Responder. Rules are matched in order with errors.Is.
func NewResponder(logger *slog.Logger, rules ...ErrorRule) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger, rules: rules}
}

// Resolve returns the wire representation for err.
func (rp *Responder) Resolve(err error) ErrorSpec {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return ErrorSpec{Status: http.StatusUnprocessableEntity, Code: "VALIDATION_ERROR", Message: "Request validation failed"}
	}
	for _, rule := range rp.rules {
		if errors.Is(err, rule.Target) {
			return rule.ErrorSpec
		}
	}
	return Internal
}

// Error renders err. Server-side failures are logged with the request id;
// their details never reach the client.
func (rp *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	spec := rp.Resolve(err)
	var data any
	var verr *ValidationError
	if errors.As(err, &verr) {
		data = verr.Fields
	}
	if spec.Status >= http.StatusInternalServerError {
		rp.logger.Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("code", spec.Code),
			slog.Any("error", err))
	}
	Failure(w, spec.Status, spec.Code, spec.Message, data)
}
