package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// Principal represents the admin identity carried by a verified token.
type Principal struct {
	AdminID   int64
	Email     string
	ExpiresAt time.Time
}

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateJWT(ctx context.Context, token string) (*service.JWTPrincipal, error)
}

// Authenticate returns an HTTP middleware that requires a valid
// "Authorization: Bearer <token>" header. On success, a Principal is
// attached to the request context. A missing, malformed, tampered, or
// expired token is rejected with 401 before the handler runs.
func Authenticate(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			p, err := tokens.ValidateJWT(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			principal := &Principal{
				AdminID:   p.AdminID,
				Email:     p.Email,
				ExpiresAt: p.ExpiresAt,
			}
			annotateAdmin(r.Context(), principal.AdminID)
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
