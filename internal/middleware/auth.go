package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/circlesocial/backend/internal/auth"
	"github.com/circlesocial/backend/internal/logging"
)

// TokenVerifier validates the Authorization header of a request.
type TokenVerifier interface {
	VerifyHeader(header string) (auth.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// verified principal to the request context.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := verifier.VerifyHeader(r.Header.Get("Authorization"))
			if err != nil {
				message := "invalid token"
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					message = "missing token"
				case errors.Is(err, auth.ErrTokenExpired):
					message = "token expired"
				}
				logging.FromContext(r.Context()).Warn("request rejected", slog.String("reason", err.Error()))
				w.Header().Set("WWW-Authenticate", `Bearer realm="circle"`)
				writeMessage(w, http.StatusUnauthorized, message)
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			ctx = logging.With(ctx, slog.String("user_id", principal.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
