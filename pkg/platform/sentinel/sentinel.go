package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity or event does not exist in store
// - ErrConflict: write lost an optimistic-concurrency race
// - ErrNoTransaction: operation requires an ambient transaction and none was found
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrNoTransaction = errors.New("no transaction in context")
	ErrUnavailable   = errors.New("unavailable")
)
