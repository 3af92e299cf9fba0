package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/tannerhall/boardcast/services"
)

type contextKey string

const grantContextKey contextKey = "grant"

// passwordHeader carries the raw board password on gated calls.
const passwordHeader = "X-Board-Password"

// AuthMiddleware resolves an optional Authorization header into a board
// grant carried in the request context. Requests without a token pass
// through untouched; board access is then gated by the password header
// alone.
type AuthMiddleware struct {
	tokens *services.TokenService
}

func NewAuthMiddleware(tokens *services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		authParts := strings.Split(authHeader, " ")
		if len(authParts) != 2 || authParts[0] != "Bearer" {
			http.Error(w, "invalid authorization format", http.StatusUnauthorized)
			return
		}

		joinKey, err := m.tokens.VerifyBoardToken(authParts[1])
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), grantContextKey, joinKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// credential assembles what the caller presented: the password header plus
// any token grant the middleware verified.
func credential(r *http.Request) services.Credential {
	cred := services.Credential{Password: r.Header.Get(passwordHeader)}
	if grant, ok := r.Context().Value(grantContextKey).(string); ok {
		cred.Grant = grant
	}
	return cred
}
