package cdc

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"syncline/pkg/platform/httputil"
)

// Handler exposes the replay endpoint. Routed behind the tenant middleware,
// so tenant validation and membership checks have already run.
type Handler struct {
	proxy  *Proxy
	logger *slog.Logger
}

func NewHandler(proxy *Proxy, logger *slog.Logger) *Handler {
	return &Handler{proxy: proxy, logger: logger}
}

// Replay handles GET /t/{tenantID}/cdc/{table}.
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	err := h.proxy.Forward(r.Context(), w, table, r.URL.Query(), true)
	if err == nil {
		return
	}
	h.logger.ErrorContext(r.Context(), "cdc replay failed", "error", err, "table", table)
	httputil.WriteError(w, err)
}
