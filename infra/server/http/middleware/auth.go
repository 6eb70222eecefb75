package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"github.com/webitel/im-realtime-gateway/internal/service"
)

type contextKey string

const (
	// IdentityContextKey is the key used to store/retrieve the verified identity from context.
	IdentityContextKey contextKey = "identity"

	// TokenQueryParam is checked before the Authorization header.
	TokenQueryParam = "token"
)

// NewAuthMiddleware rejects the handshake with 401 before any upgrade when
// the token does not verify.
func NewAuthMiddleware(auther service.Auther, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// [PRE_AUTH] Validate identity before allowing the socket to open
			id, err := auther.Inspect(r.Context(), TokenFromRequest(r))
			if err != nil {
				logger.Debug("HANDSHAKE_REJECTED", slog.String("remote_addr", r.RemoteAddr))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			// [ENRICHMENT] Inject the identity into the context for downstream handlers
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), IdentityContextKey, id)))
		})
	}
}

// TokenFromRequest reads the handshake token from the query string, then
// from a bearer Authorization header.
func TokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get(TokenQueryParam); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// GetIdentity is a helper to extract the identity from context safely.
func GetIdentity(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(*model.Identity)
	return id, ok && id != nil
}
