package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"syncline/internal/entity"
	dErrors "syncline/pkg/domain-errors"
	"syncline/pkg/platform/httputil"
	"syncline/pkg/requestcontext"
)

// cachedGet serves a read through the shared cache using a redeemed cache
// token. Exactly one redeemer wins the fill lease and performs the real read;
// the rest are served the cached copy once filled. Cache trouble never fails
// the request: the path degrades to a direct read.
func (h *Handler) cachedGet(w http.ResponseWriter, r *http.Request, token, tenantID, entityType, id string) {
	ctx := r.Context()

	claims, err := h.tokens.Redeem(token, requestcontext.UserID(ctx), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if claims.EntityType != entityType || claims.EntityID != id {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cache token minted for another entity"))
		return
	}

	if body, hit, err := h.cache.Fetch(ctx, claims); err == nil && hit {
		w.Header().Set("X-Shared-Cache", "hit")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	} else if err != nil {
		h.logger.Warn("shared cache fetch failed, reading directly", "error", err)
	}

	won, err := h.cache.AcquireFill(ctx, claims)
	if err != nil {
		h.logger.Warn("fill lease acquisition failed, reading directly", "error", err)
	}

	var record *entity.Record
	err = h.scope.Run(ctx, tenantID, func(ctx context.Context) error {
		var err error
		record, err = h.service.Get(ctx, tenantID, entityType, id)
		return err
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if won {
		if body, err := json.Marshal(record); err == nil {
			if err := h.cache.Fill(ctx, claims, body); err != nil {
				h.logger.Warn("shared cache fill failed", "error", err)
			}
		}
	}

	w.Header().Set("X-Shared-Cache", "miss")
	httputil.WriteJSON(w, http.StatusOK, record)
}
