// Package whispercpp implements transcriber.Provider against a
// whisper.cpp-compatible HTTP server's /inference endpoint.
package whispercpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/diarserver/pkg/provider/transcriber"
)

// Ensure Provider implements transcriber.Provider at compile time.
var _ transcriber.Provider = (*Provider)(nil)

// DefaultTimeout bounds a single transcription request. Transcription of a
// long upload can legitimately take minutes, so the default is generous.
const DefaultTimeout = 5 * time.Minute

// Provider calls a whisper.cpp HTTP server's /inference endpoint with a
// multipart file upload.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// config holds optional configuration collected from functional options.
type config struct {
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Provider targeting the whisper.cpp server at baseURL
// (e.g. "http://localhost:8178"). A trailing slash is stripped.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("whispercpp: base URL must not be empty")
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

// inferenceResponse covers both shapes the backend may return: a full
// per-segment breakdown, or a bare aggregate "text" field when the backend
// has no segment timestamps to offer.
type inferenceResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe implements transcriber.Provider.
func (p *Provider) Transcribe(ctx context.Context, path string, opts transcriber.Options) ([]transcriber.Segment, error) {
	body, contentType, err := buildMultipart(path, opts)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: transcribe: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/inference", body)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: transcribe: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whispercpp: transcribe: unexpected status %d", resp.StatusCode)
	}

	var parsed inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("whispercpp: transcribe: decode response: %w", err)
	}

	if len(parsed.Segments) > 0 {
		out := make([]transcriber.Segment, len(parsed.Segments))
		for i, s := range parsed.Segments {
			out[i] = transcriber.Segment{Text: strings.TrimSpace(s.Text), Start: s.Start, End: s.End}
		}
		return out, nil
	}

	if strings.TrimSpace(parsed.Text) == "" {
		return []transcriber.Segment{}, nil
	}
	// Single-segment fallback: the backend reported only aggregate text
	// with no per-segment timestamps.
	return []transcriber.Segment{{Text: strings.TrimSpace(parsed.Text), Start: 0, End: 0}}, nil
}

// Available implements transcriber.Provider by probing the server root.
func (p *Provider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
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

func buildMultipart(path string, opts transcriber.Options) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy audio bytes: %w", err)
	}

	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", fmt.Errorf("write response_format field: %w", err)
	}
	temp := opts.Temperature
	if err := w.WriteField("temperature", strconv.FormatFloat(temp, 'f', -1, 64)); err != nil {
		return nil, "", fmt.Errorf("write temperature field: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
