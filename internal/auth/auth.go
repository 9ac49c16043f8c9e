// Package auth validates the bearer tokens issued by the platform's
// token service and tracks revoked tokens. Token issuing itself lives
// outside this process; this package only verifies signatures and
// claims, consults the revocation list, and places the resulting
// identity in the request context.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// Identity represents an authenticated caller.
type Identity struct {
	UserID string         // subject claim
	Roles  []string       // "roles" claim, e.g. ["trainee"], ["reviewer"]
	Claims map[string]any // full claim set
	Token  string         // raw bearer token, used for revocation checks
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type contextKey struct{}

var identityKey = contextKey{}

// WithIdentity adds an Identity to the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the Identity from context, or nil for
// anonymous requests.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey).(*Identity); ok {
		return id
	}
	return nil
}

// Middleware validates bearer tokens and rejects revoked ones.
// Requests without an Authorization header pass through anonymously;
// handlers that require authentication use RequireAuth on top.
func Middleware(validator *JWTValidator, revocation *RevocationStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "malformed authorization header")
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			id, err := validator.Validate(token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			if revocation.IsBlacklisted(r.Context(), token) {
				unauthorized(w, "token has been revoked")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAuth rejects anonymous requests. Apply after Middleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			unauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="skillforge"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
