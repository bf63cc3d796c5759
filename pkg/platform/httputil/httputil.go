// Package httputil centralizes JSON response and domain-error rendering so
// every handler emits the same envelopes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "syncline/pkg/domain-errors"
)

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the shared JSON error envelope.
// Unknown errors map to internal without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]any{"error": string(code)}

	var de *dErrors.Error
	if errors.As(err, &de) {
		if de.Message != "" {
			body["error_description"] = de.Message
		}
		for k, v := range de.Details {
			body[k] = v
		}
	}

	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
