// Package transcriber defines the Provider interface for speech-to-text
// backends that operate on a complete audio file rather than a live stream.
//
// A transcriber wraps a batch transcription service (e.g. a whisper.cpp
// HTTP server) and returns an ordered sequence of timestamped text
// segments for the whole file in one call.
//
// Implementations must be safe for concurrent use.
package transcriber

import "context"

// Segment is one ordered span of transcribed text.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// Options carries the per-request knobs a caller may forward to the
// backend. Zero values mean "use the backend's default".
type Options struct {
	// Temperature is passed through to the backend's decoding sampler.
	Temperature float64
}

// Provider is the abstraction over any batch speech-to-text backend.
//
// Implementations must be safe for concurrent use; a single Provider
// instance may be shared across all in-flight requests.
type Provider interface {
	// Transcribe returns the ordered segments found in the audio file at
	// path. An empty, non-nil slice with a nil error means the backend
	// understood the request but found no speech.
	Transcribe(ctx context.Context, path string, opts Options) ([]Segment, error)

	// Available reports whether the backend is currently reachable, for use
	// by the health endpoint. It must not block for long.
	Available(ctx context.Context) bool
}
