// Package pyannotehttp implements diarizer.Provider against an HTTP
// diarization microservice that wraps a pyannote speaker-diarization
// pipeline.
package pyannotehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/diarserver/pkg/provider/diarizer"
)

var _ diarizer.Provider = (*Provider)(nil)

// DefaultTimeout bounds a single diarization request.
const DefaultTimeout = 2 * time.Minute

// Provider calls an HTTP diarization service's /diarize endpoint.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

type config struct {
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Provider targeting the diarization service at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("pyannotehttp: base URL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := &config{timeout: DefaultTimeout}
	for _, o := range opts {
		o(cfg)
	}

	return &Provider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.timeout},
	}, nil
}

type diarizeTurn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// GetSpeakerTurns implements diarizer.Provider.
func (p *Provider) GetSpeakerTurns(ctx context.Context, path string, numSpeakersHint int) ([]diarizer.Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pyannotehttp: open audio file: %w", err)
	}
	defer f.Close()

	url := p.baseURL + "/diarize"
	if numSpeakersHint > 0 {
		url += "?num_speakers=" + strconv.Itoa(numSpeakersHint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, f)
	if err != nil {
		return nil, fmt.Errorf("pyannotehttp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pyannotehttp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pyannotehttp: unexpected status %d", resp.StatusCode)
	}

	var turns []diarizeTurn
	if err := json.NewDecoder(resp.Body).Decode(&turns); err != nil {
		return nil, fmt.Errorf("pyannotehttp: decode response: %w", err)
	}

	out := make([]diarizer.Turn, len(turns))
	for i, t := range turns {
		out[i] = diarizer.Turn{LocalLabel: t.Speaker, Start: t.Start, End: t.End}
	}
	return out, nil
}

// Available implements diarizer.Provider by probing a health endpoint.
func (p *Provider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
