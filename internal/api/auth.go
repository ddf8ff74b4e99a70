package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ignite/membership-admin/internal/pkg/httputil"
)

// BearerAuth rejects requests that do not carry the configured static
// token. An empty token rejects everything.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
				httputil.Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
