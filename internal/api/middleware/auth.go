package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/cloo-solutions/coursechat/internal/api"
	"github.com/cloo-solutions/coursechat/internal/domain"
)

type contextKey string

const PrincipalKey contextKey = "principal"

const bearerChallenge = `Bearer realm="coursechat-admin"`

type AuthValidator interface {
	ValidateAdminToken(ctx context.Context, token string) (string, error)
}

// bearerToken extracts the credentials of an "Authorization: Bearer" header. The scheme
// is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AdminAuth guards the document management routes. A missing or rejected token is a
// 401 with a Bearer challenge; a server without an admin token answers 403.
func AdminAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			unauthorized := func(message string) {
				w.Header().Set("WWW-Authenticate", bearerChallenge)
				api.Error(w, http.StatusUnauthorized, message)
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized("missing authorization header")
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				unauthorized("invalid authorization format")
				return
			}

			principal, err := validator.ValidateAdminToken(r.Context(), token)
			switch {
			case errors.Is(err, domain.ErrAdminDisabled):
				api.Error(w, http.StatusForbidden, "admin endpoints are disabled")
				return
			case err != nil:
				log.Printf("auth: rejected admin token from %s (request %s)", clientIP(r), GetRequestID(r.Context()))
				unauthorized("invalid admin token")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetPrincipal(ctx context.Context) string {
	principal, _ := ctx.Value(PrincipalKey).(string)
	return principal
}
