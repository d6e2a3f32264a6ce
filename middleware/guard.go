// Package middleware guards protected routes: it pulls the access token
// off its HttpOnly cookie, verifies it through the engine, and forwards
// the authenticated subject in the request context. Requests that fail
// verification are denied with no context.
package middleware

import (
	"context"
	"net/http"

	"github.com/mailgate/mailgate"
	"github.com/mailgate/mailgate/cookie"
)

type subjectContextKey struct{}

// SubjectFromContext returns the verified claims the Guard stored.
func SubjectFromContext(ctx context.Context) (mailgate.SubjectClaims, bool) {
	claims, ok := ctx.Value(subjectContextKey{}).(mailgate.SubjectClaims)
	return claims, ok
}

// Guard wraps a handler with access-cookie verification. A missing cookie
// fails the same way an invalid token does.
func Guard(engine *mailgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			token, _ := cookie.Extract(r.Header.Values("Cookie"), cookie.AccessTokenName)

			claims, err := engine.VerifyAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
