package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-loja/internal/common"
)

// Middleware validates identity-provider JWTs. This service never issues
// tokens itself; it only verifies the shared-secret signature and lifts the
// subject claim into the request context.
type Middleware struct {
	Secret    []byte
	Issuer    string
	ClockSkew time.Duration
}

func (m Middleware) parse(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" || raw == header {
		return "", false
	}
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, m.Secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(m.ClockSkew),
	}
	if m.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.Issuer))
	}
	token, err := jwt.ParseString(raw, opts...)
	if err != nil {
		return "", false
	}
	sub := token.Subject()
	if sub == "" {
		return "", false
	}
	return sub, true
}

// Authenticate attaches the user id to the context when a valid token is
// present and lets the request through either way. Cart and checkout accept
// both anonymous and signed-in shoppers.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub, ok := m.parse(r); ok {
			r = r.WithContext(common.WithUserID(r.Context(), sub))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a valid token. Order history is the
// only surface behind it.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := m.parse(r)
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), sub)))
	})
}
