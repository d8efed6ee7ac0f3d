package annotate

import "errors"

// Sentinel error kinds surfaced to HTTP handlers for status mapping.
var (
	// ErrCollaboratorUnavailable means a collaborator could not be reached
	// or returned malformed output, and the failure could not be locally
	// recovered (only Transcriber failures reach this — Diarizer/Embedder
	// failures degrade instead of propagating).
	ErrCollaboratorUnavailable = errors.New("annotate: collaborator unavailable")

	// ErrTransientTimeout means an external call exceeded its deadline.
	// Clients are expected to retry.
	ErrTransientTimeout = errors.New("annotate: transient timeout")

	// ErrCorruptInput means the uploaded audio could not be transcoded.
	ErrCorruptInput = errors.New("annotate: corrupt input")

	// ErrClientError means the request itself was malformed.
	ErrClientError = errors.New("annotate: client error")
)
