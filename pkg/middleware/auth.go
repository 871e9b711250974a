package middleware

import (
	"context"
	"net/http"
	"strings"

	"reservo/pkg/logger"
)

const IdentityKey contextKey = "identity"

// Identity is the authenticated principal attached to the request context.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// TokenVerifier validates a bearer token and returns the identity it encodes.
type TokenVerifier interface {
	Verify(tokenString string) (*Identity, error)
}

func Authenticate(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				rejectUnauthorized(w, log, r, "missing bearer token")
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				rejectUnauthorized(w, log, r, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(role string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				rejectUnauthorized(w, log, r, "no identity in context")
				return
			}

			if identity.Role != role {
				log.Warn("Insufficient role",
					"request_id", requestIDFromContext(r.Context()),
					"user_id", identity.UserID,
					"role", identity.Role,
					"required_role", role,
					"path", r.URL.Path,
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"Insufficient permissions"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*Identity)
	return identity, ok && identity != nil
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func rejectUnauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Unauthorized request",
		"request_id", requestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Authentication required"}`))
}
