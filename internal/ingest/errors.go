// File: internal/ingest/errors.go
package ingest

import "errors"

// Sentinel errors classifying upload failures. The API layer maps them to
// HTTP status codes with errors.Is, so wrapped causes stay inspectable.
var (
	// ErrMissingCredential marks a request that carried no bearer token.
	ErrMissingCredential = errors.New("missing bearer credential")

	// ErrAuthFailed marks a token the identity service would not vouch for.
	ErrAuthFailed = errors.New("identity verification failed")

	// ErrInvalidPayload marks a body that cannot produce any workspace batch.
	ErrInvalidPayload = errors.New("invalid findings payload")

	// ErrPersistence marks a storage write that did not complete.
	ErrPersistence = errors.New("batch persistence failed")
)
