// Package embedder defines the Provider interface for voiceprint-extraction
// backends: given an audio file and a time interval, characterize the
// dominant voice in that interval as a fixed-dimensional vector.
package embedder

import "context"

// Provider is the abstraction over any voiceprint-extraction backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (Dimensions).
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed extracts a voiceprint for the dominant speaker within
	// [start,end] of the audio file at path. ok is false (with a nil error)
	// when the backend could not produce a usable embedding for that
	// interval — e.g. the interval is silence. An error is reserved for
	// transport/protocol failures.
	Embed(ctx context.Context, path string, start, end float64) (vector []float32, ok bool, err error)

	// Dimensions returns the fixed vector length produced by this provider.
	Dimensions() int

	// Available reports whether the backend is currently reachable, for use
	// by the health endpoint. It must not block for long.
	Available(ctx context.Context) bool
}
