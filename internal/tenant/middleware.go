package tenant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"syncline/pkg/platform/httputil"
	"syncline/pkg/requestcontext"
)

// Middleware validates the {tenantID} path parameter and authorizes the
// caller before any handler runs. The scoped transaction itself is opened by
// handlers via Scope.Run so its lifetime matches the actual unit of work.
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := ParseTenantID(chi.URLParam(r, "tenantID"))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			if err := resolver.Authorize(r.Context(), tenantID); err != nil {
				httputil.WriteError(w, err)
				return
			}
			ctx := requestcontext.WithTenantID(r.Context(), tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
