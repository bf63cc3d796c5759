// Package handler exposes the versioned entity endpoints protected by the
// sync-transaction envelope. Routed behind the tenant middleware; every
// mutation runs inside a tenant-scoped unit of work.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"syncline/internal/entity"
	"syncline/internal/notification"
	"syncline/internal/stx"
	"syncline/internal/tenant"
	dErrors "syncline/pkg/domain-errors"
	"syncline/pkg/platform/httputil"
	"syncline/pkg/requestcontext"
)

type Handler struct {
	service *entity.Service
	scope   *tenant.Scope
	logger  *slog.Logger

	tokens *notification.TokenIssuer
	cache  *notification.SharedCache
}

// Option configures the Handler.
type Option func(*Handler)

// WithCachedReads enables the shared-cache read path for redeemed cache
// tokens.
func WithCachedReads(tokens *notification.TokenIssuer, cache *notification.SharedCache) Option {
	return func(h *Handler) {
		h.tokens = tokens
		h.cache = cache
	}
}

func New(service *entity.Service, scope *tenant.Scope, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, scope: scope, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the record endpoints on a tenant-scoped router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/records/{entityType}/{id}", h.Get)
	r.Post("/records/{entityType}/{id}", h.Create)
	r.Put("/records/{entityType}/{id}", h.Update)
	r.Delete("/records/{entityType}/{id}", h.Delete)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := requestcontext.TenantID(r.Context())
	entityType := chi.URLParam(r, "entityType")
	id := chi.URLParam(r, "id")

	if token := r.URL.Query().Get("cacheToken"); token != "" && h.tokens != nil && h.cache != nil {
		h.cachedGet(w, r, token, tenantID, entityType, id)
		return
	}

	var record *entity.Record
	err := h.scope.Run(r.Context(), tenantID, func(ctx context.Context) error {
		var err error
		record, err = h.service.Get(ctx, tenantID, entityType, id)
		return err
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusCreated, func(ctx context.Context, tenantID, entityType, id string, attrs map[string]any, env stx.Envelope) (*entity.Record, error) {
		return h.service.Create(ctx, tenantID, entityType, id, attrs, env)
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, tenantID, entityType, id string, attrs map[string]any, env stx.Envelope) (*entity.Record, error) {
		return h.service.Update(ctx, tenantID, entityType, id, attrs, env)
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	req, err := stx.Decode(r.Body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tenantID := requestcontext.TenantID(r.Context())
	entityType := chi.URLParam(r, "entityType")
	id := chi.URLParam(r, "id")

	err = h.scope.Run(r.Context(), tenantID, func(ctx context.Context) error {
		ctx = requestcontext.WithSourceID(ctx, req.Stx.SourceID)
		return h.service.Delete(ctx, tenantID, entityType, id, req.Stx)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mutateFn func(ctx context.Context, tenantID, entityType, id string, attrs map[string]any, env stx.Envelope) (*entity.Record, error)

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, successStatus int, fn mutateFn) {
	req, err := stx.Decode(r.Body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var attrs map[string]any
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &attrs); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "malformed data payload"))
			return
		}
	}
	if attrs == nil {
		attrs = map[string]any{}
	}

	tenantID := requestcontext.TenantID(r.Context())
	entityType := chi.URLParam(r, "entityType")
	id := chi.URLParam(r, "id")

	var record *entity.Record
	err = h.scope.Run(r.Context(), tenantID, func(ctx context.Context) error {
		ctx = requestcontext.WithSourceID(ctx, req.Stx.SourceID)
		var err error
		record, err = fn(ctx, tenantID, entityType, id, attrs, req.Stx)
		return err
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, successStatus, record)
}
