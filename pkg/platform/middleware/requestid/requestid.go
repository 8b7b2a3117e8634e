package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"veristamp/pkg/requestcontext"
)

// Header is the inbound/outbound request ID header.
const Header = "X-Request-ID"

// Middleware attaches a request ID to the context and response. An inbound
// X-Request-ID is honored so callers can correlate retries; otherwise a new
// UUID is generated.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
