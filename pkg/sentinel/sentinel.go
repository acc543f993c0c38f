package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the scanner adapter
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in a store
// - ErrTimeout: a capture window expired without a sample
// - ErrInvalidState: resource in the wrong state for the requested operation
// - ErrUnavailable: hardware or backing service not reachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrTimeout      = errors.New("timeout")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
