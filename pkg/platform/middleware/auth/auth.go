package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"veristamp/internal/issuertoken"
	"veristamp/pkg/requestcontext"
)

// TokenValidator defines the interface for validating issuer bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*issuertoken.Claims, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}

// RequireIssuer gates issuance endpoints behind a valid issuer bearer token.
// On success the issuer identity is placed on the request context.
func RequireIssuer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				if logger != nil {
					logger.WarnContext(r.Context(), "issuer token rejected",
						"request_id", requestcontext.RequestID(r.Context()),
						"error", err,
					)
				}
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			ctx := requestcontext.WithIssuerID(r.Context(), claims.IssuerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
