// Package voiceprint implements embedder.Provider against an HTTP voiceprint
// extraction service.
package voiceprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/diarserver/pkg/provider/embedder"
)

var _ embedder.Provider = (*Provider)(nil)

// DefaultTimeout bounds a single embedding extraction request. Extraction
// operates on a short interval of audio and should be fast.
const DefaultTimeout = 30 * time.Second

// Provider calls an HTTP voiceprint service's /embed endpoint.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	dimensions int
	detectOnce sync.Once
}

type config struct {
	timeout    time.Duration
	apiKey     string
	dimensions int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithAPIKey sets a bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithDimensions pre-sets the embedding dimension. Without it, Dimensions()
// reports 0 until the first successful Embed call records the vector length.
func WithDimensions(dims int) Option {
	return func(c *config) { c.dimensions = dims }
}

// New constructs a Provider targeting the voiceprint service at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("voiceprint: base URL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := &config{timeout: DefaultTimeout}
	for _, o := range opts {
		o(cfg)
	}

	return &Provider{
		baseURL:    baseURL,
		apiKey:     cfg.apiKey,
		httpClient: &http.Client{Timeout: cfg.timeout},
		dimensions: cfg.dimensions,
	}, nil
}

type embedRequest struct {
	AudioPath string  `json:"audio_path"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
	OK     bool      `json:"ok"`
}

// Embed implements embedder.Provider.
func (p *Provider) Embed(ctx context.Context, path string, start, end float64) ([]float32, bool, error) {
	body, err := json.Marshal(embedRequest{AudioPath: path, Start: start, End: end})
	if err != nil {
		return nil, false, fmt.Errorf("voiceprint: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("voiceprint: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.setAuth(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("voiceprint: embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("voiceprint: embed: unexpected status %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("voiceprint: decode response: %w", err)
	}
	if !parsed.OK || len(parsed.Vector) == 0 {
		return nil, false, nil
	}

	if p.dimensions == 0 {
		p.detectOnce.Do(func() { p.dimensions = len(parsed.Vector) })
	}
	return parsed.Vector, true, nil
}

// Dimensions implements embedder.Provider.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Available implements embedder.Provider by probing a health endpoint.
func (p *Provider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	p.setAuth(req)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *Provider) setAuth(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}
