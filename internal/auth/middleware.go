package auth

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// Middleware resolves the bearer token of every request to an account and
// stores it in the request context. Requests without a valid session get 401.
func Middleware(service *Service, respond *httpx.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc, sess, err := service.Resolve(r.Context(), shared.TokenFromRequest(r))
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			ctx := accounts.ContextWithAccount(r.Context(), acc)
			ctx = shared.ContextWithSession(ctx, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
