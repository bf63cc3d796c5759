// Package stx defines the client sync-transaction envelope attached to every
// mutating request, used for optimistic-concurrency conflict detection.
package stx

import (
	"encoding/json"
	"io"

	dErrors "syncline/pkg/domain-errors"
)

// Envelope carries the concurrency metadata for one mutation attempt.
// MutationID is unique per attempt (regenerate on retry); SourceID is stable
// per client instance so a client can suppress its own echoed notification;
// LastReadVersion is the entity version the client last observed (0 for
// creates).
type Envelope struct {
	MutationID      string `json:"mutationId"`
	SourceID        string `json:"sourceId"`
	LastReadVersion int64  `json:"lastReadVersion"`
}

// Validate checks envelope shape before any side effect occurs.
func (e Envelope) Validate() error {
	if e.MutationID == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "stx.mutationId is required")
	}
	if e.SourceID == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "stx.sourceId is required")
	}
	if e.LastReadVersion < 0 {
		return dErrors.New(dErrors.CodeInvalidRequest, "stx.lastReadVersion must not be negative")
	}
	return nil
}

// Request is the mutation envelope consumed by every write endpoint the
// engine protects: the payload plus the sync-transaction descriptor.
type Request struct {
	Data json.RawMessage `json:"data"`
	Stx  Envelope        `json:"stx"`
}

// Decode parses and validates a mutation request body.
func Decode(r io.Reader) (*Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "malformed mutation envelope")
	}
	if err := req.Stx.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
