package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/breatheroute/aqiforecast/internal/api/models"
	"github.com/breatheroute/aqiforecast/internal/auth"
)

// operatorKey is the context key for the authenticated operator subject.
type operatorKey struct{}

// TokenValidator validates operator bearer tokens.
type TokenValidator interface {
	Enabled() bool
	ValidateOperatorToken(token string) (*auth.Claims, error)
}

// OperatorAuth guards mutating endpoints with an operator bearer token.
// When no signing key is configured every request is refused with 403.
func OperatorAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil || !tokens.Enabled() {
				writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "operator access is not configured"))
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, r, "missing or malformed bearer token")
				return
			}

			claims, err := tokens.ValidateOperatorToken(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "operator token has expired")
				case errors.Is(err, auth.ErrNotOperator):
					writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "token does not grant operator access"))
				default:
					writeUnauthorized(w, r, "invalid operator token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="aqiforecast"`)
	writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), detail))
}

// writeProblem writes p with r's path as the instance.
func writeProblem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}

// GetOperator returns the authenticated operator subject, or "" outside
// OperatorAuth.
func GetOperator(ctx context.Context) string {
	if sub, ok := ctx.Value(operatorKey{}).(string); ok {
		return sub
	}
	return ""
}
