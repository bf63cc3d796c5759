// Package http wires the public surface: the push stream, the CDC replay
// endpoint, the tenant-scoped record endpoints, and operational routes.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syncline/internal/cdc"
	entityhandler "syncline/internal/entity/handler"
	platformmiddleware "syncline/internal/platform/middleware"
	"syncline/internal/stream"
	"syncline/internal/tenant"
	"syncline/pkg/platform/httputil"
)

// Dependencies carries everything the router mounts. CDCHandler may be nil
// when no upstream change-log service is configured.
type Dependencies struct {
	Logger         *slog.Logger
	Validator      platformmiddleware.JWTValidator
	TenantResolver *tenant.Resolver
	StreamHandler  *stream.Handler
	CDCHandler     *cdc.Handler
	EntityHandler  *entityhandler.Handler
	HealthCheck    func(ctx context.Context) error
}

// NewRouter assembles the chi router with the shared middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(platformmiddleware.RequestID)
	r.Use(platformmiddleware.RequestTime)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(deps.HealthCheck))

	r.Group(func(r chi.Router) {
		r.Use(platformmiddleware.RequireAuth(deps.Validator, deps.Logger))

		r.Method(http.MethodGet, "/stream", deps.StreamHandler)

		r.Route("/t/{tenantID}", func(r chi.Router) {
			r.Use(tenant.Middleware(deps.TenantResolver))

			if deps.CDCHandler != nil {
				r.Get("/cdc/{table}", deps.CDCHandler.Replay)
			}
			deps.EntityHandler.Routes(r)
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
