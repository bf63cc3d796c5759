package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"syncline/internal/notification"
	dErrors "syncline/pkg/domain-errors"
	"syncline/pkg/platform/httputil"
	"syncline/pkg/requestcontext"
)

// Handler serves the long-lived push stream over server-sent events. The
// client declares per-organization cursors on (re)connect either through
// repeated "cursor=orgID:seq" query parameters or a Last-Event-ID header;
// catch-up replays before the first live event, then keep-alive comments
// defeat idle-connection timeouts at intermediary proxies.
type Handler struct {
	manager   *Manager
	keepAlive time.Duration
	logger    *slog.Logger
}

func NewHandler(manager *Manager, keepAlive time.Duration, logger *slog.Logger) *Handler {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &Handler{manager: manager, keepAlive: keepAlive, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "stream requires an authenticated caller"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported by connection"))
		return
	}

	cursors, err := parseCursors(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sub, replay, err := h.manager.Subscribe(ctx, userID, cursors)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer h.manager.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, n := range replay {
		if err := writeEvent(w, n); err != nil {
			h.logger.Debug("catch-up write failed", "error", err, "subscriber_id", sub.ID)
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case n := <-sub.Notifications():
			if err := writeEvent(w, n); err != nil {
				h.logger.Debug("stream write failed", "error", err, "subscriber_id", sub.ID)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, n notification.StreamNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s:%d\nevent: notification\ndata: %s\n\n", n.OrganizationID, n.Seq, data)
	return err
}

// parseCursors reads "orgID:seq" pairs from repeated cursor query parameters,
// falling back to the Last-Event-ID header set by EventSource reconnects.
func parseCursors(r *http.Request) (map[string]int64, error) {
	cursors := make(map[string]int64)

	raw := r.URL.Query()["cursor"]
	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		raw = append(raw, lastEventID)
	}

	for _, pair := range raw {
		org, seqStr, ok := strings.Cut(pair, ":")
		if !ok || org == "" {
			return nil, dErrors.Newf(dErrors.CodeInvalidRequest, "malformed cursor %q, want orgID:seq", pair)
		}
		seq, err := strconv.ParseInt(seqStr, 10, 64)
		if err != nil || seq < 0 {
			return nil, dErrors.Newf(dErrors.CodeInvalidRequest, "malformed cursor seq in %q", pair)
		}
		if existing, ok := cursors[org]; !ok || seq > existing {
			cursors[org] = seq
		}
	}
	return cursors, nil
}
