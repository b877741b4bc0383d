package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/shoplane/shoplane-backend/api/responses"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
)

const adminTokenHeader = "X-Admin-Token"

// RequireAdmin gates the back-office surface behind the shared admin token.
// Comparison is constant time; an empty configured token disables the whole
// surface rather than opening it.
func RequireAdmin(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin surface disabled"))
				return
			}

			provided := r.Header.Get(adminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin token required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
