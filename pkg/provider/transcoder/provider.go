// Package transcoder defines the Provider interface for normalizing an
// arbitrary input audio file into mono 16kHz PCM suitable for diarization.
package transcoder

import "context"

// Provider is the abstraction over any audio normalization backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Convert reads the audio file at inputPath and writes a normalized
	// mono, 16kHz PCM file to outputPath.
	Convert(ctx context.Context, inputPath, outputPath string) error
}
