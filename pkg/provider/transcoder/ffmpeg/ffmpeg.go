// Package ffmpeg implements transcoder.Provider by shelling out to the
// ffmpeg binary, mirroring the normalization step a diarization pipeline
// needs before handing audio to the speaker model: mono, 16kHz PCM.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/MrWong99/diarserver/pkg/provider/transcoder"
)

var _ transcoder.Provider = (*Provider)(nil)

// DefaultSampleRate and DefaultChannels are the normalization targets the
// diarization backend expects.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
)

// Provider invokes the ffmpeg binary found at BinaryPath to normalize audio.
type Provider struct {
	binaryPath string
	sampleRate int
	channels   int
}

type config struct {
	sampleRate int
	channels   int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithSampleRate overrides DefaultSampleRate.
func WithSampleRate(hz int) Option {
	return func(c *config) { c.sampleRate = hz }
}

// WithChannels overrides DefaultChannels.
func WithChannels(n int) Option {
	return func(c *config) { c.channels = n }
}

// New constructs a Provider that invokes binaryPath (typically "ffmpeg",
// resolved via PATH) to perform conversion.
func New(binaryPath string, opts ...Option) (*Provider, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("ffmpeg: binary path must not be empty")
	}

	cfg := &config{sampleRate: DefaultSampleRate, channels: DefaultChannels}
	for _, o := range opts {
		o(cfg)
	}

	return &Provider{
		binaryPath: binaryPath,
		sampleRate: cfg.sampleRate,
		channels:   cfg.channels,
	}, nil
}

// Convert implements transcoder.Provider.
func (p *Provider) Convert(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, p.binaryPath,
		"-i", inputPath,
		"-ar", strconv.Itoa(p.sampleRate),
		"-ac", strconv.Itoa(p.channels),
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: convert: %w: %s", err, stderr.String())
	}
	return nil
}
