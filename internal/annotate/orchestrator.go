// Package annotate implements the per-chunk request pipeline: transcribe,
// optionally transcode and diarize, optionally resolve speaker identity,
// then merge into the final annotated segments.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/diarserver/internal/merge"
	"github.com/MrWong99/diarserver/internal/observe"
	"github.com/MrWong99/diarserver/internal/resilience"
	"github.com/MrWong99/diarserver/internal/speaker"
	"github.com/MrWong99/diarserver/pkg/provider/diarizer"
	"github.com/MrWong99/diarserver/pkg/provider/embedder"
	"github.com/MrWong99/diarserver/pkg/provider/transcoder"
	"github.com/MrWong99/diarserver/pkg/provider/transcriber"
)

// Request is one chunk-annotation request.
type Request struct {
	// Audio is the raw uploaded audio bytes.
	Audio io.Reader

	// Diarize requests speaker turn detection. When false, every segment is
	// labeled UNKNOWN and the Diarizer/Embedder are never called.
	Diarize bool

	// SessionID scopes speaker identity resolution. Empty means the turns
	// from the Diarizer pass through unresolved.
	SessionID string

	// NumSpeakersHint is the caller's expected speaker count, or
	// speaker.NoSpeakersHint if not supplied.
	NumSpeakersHint int

	// Temperature is forwarded to the Transcriber's decoding sampler.
	Temperature float64
}

// Result is the orchestrator's output for one chunk.
type Result struct {
	Segments []merge.Annotated
	Text     string
}

// Orchestrator wires the four collaborator clients, the speaker store, and
// the merger into the single-chunk pipeline described by the request
// orchestrator design.
type Orchestrator struct {
	transcriber transcriber.Provider
	diarizer    diarizer.Provider
	embedder    embedder.Provider
	transcoder  transcoder.Provider
	store       *speaker.Store

	tempDir           string
	transcribeTimeout time.Duration

	transcriberBreaker *resilience.CircuitBreaker
	diarizerBreaker    *resilience.CircuitBreaker
	embedderBreaker    *resilience.CircuitBreaker
	transcoderBreaker  *resilience.CircuitBreaker

	metrics *observe.Metrics
}

// New constructs an Orchestrator. cbCfg supplies the shared tuning applied
// to all four per-collaborator circuit breakers (only Name differs between
// them).
func New(
	t transcriber.Provider,
	d diarizer.Provider,
	e embedder.Provider,
	tc transcoder.Provider,
	store *speaker.Store,
	tempDir string,
	transcribeTimeout time.Duration,
	cbCfg resilience.CircuitBreakerConfig,
	metrics *observe.Metrics,
) *Orchestrator {
	breaker := func(name string) *resilience.CircuitBreaker {
		cfg := cbCfg
		cfg.Name = name
		cfg.OnStateChange = func(name string, from, to resilience.State) {
			metrics.RecordCircuitBreakerStateChange(context.Background(), name, to.String())
		}
		return resilience.NewCircuitBreaker(cfg)
	}

	return &Orchestrator{
		transcriber:        t,
		diarizer:           d,
		embedder:           e,
		transcoder:         tc,
		store:              store,
		tempDir:            tempDir,
		transcribeTimeout:  transcribeTimeout,
		transcriberBreaker: breaker("transcriber"),
		diarizerBreaker:    breaker("diarizer"),
		embedderBreaker:    breaker("embedder"),
		transcoderBreaker:  breaker("transcoder"),
		metrics:            metrics,
	}
}

// Process runs one chunk through the full pipeline and returns the
// annotated segments. Temporary files are deleted on every exit path.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	uploadPath, err := o.saveUpload(req.Audio)
	if err != nil {
		return nil, fmt.Errorf("annotate: save upload: %w", err)
	}
	defer removeTemp(uploadPath)

	segs, err := o.transcribe(ctx, uploadPath, req.Temperature)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return &Result{Segments: []merge.Annotated{}, Text: ""}, nil
	}

	mergeSegs := toMergeSegments(segs)
	text := concatText(segs)

	if !req.Diarize || !o.diarizer.Available(ctx) {
		return &Result{Segments: merge.Merge(mergeSegs, nil), Text: text}, nil
	}

	pcmPath := sibling(uploadPath, ".pcm")
	defer removeTemp(pcmPath)
	if err := o.transcode(ctx, uploadPath, pcmPath); err != nil {
		return nil, err
	}

	turns, err := o.diarize(ctx, pcmPath, req.NumSpeakersHint)
	if err != nil {
		// Diarizer failure degrades to an empty turn list rather than
		// failing the request: every segment comes back UNKNOWN.
		slog.Warn("annotate: diarizer failed, degrading to UNKNOWN", "error", err)
		turns = nil
	}

	if req.SessionID != "" && len(turns) > 0 && o.embedder.Available(ctx) {
		turns = o.resolveSpeakers(ctx, req.SessionID, pcmPath, turns, req.NumSpeakersHint)
	}

	return &Result{Segments: merge.Merge(mergeSegs, turns), Text: text}, nil
}

func (o *Orchestrator) saveUpload(audio io.Reader) (string, error) {
	path := filepath.Join(o.tempDir, uuid.NewString()+".upload")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, audio); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, path string, temperature float64) ([]transcriber.Segment, error) {
	tctx := ctx
	if o.transcribeTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, o.transcribeTimeout)
		defer cancel()
	}

	start := time.Now()
	var segs []transcriber.Segment
	err := o.transcriberBreaker.Execute(func() error {
		var err error
		segs, err = o.transcriber.Transcribe(tctx, path, transcriber.Options{Temperature: temperature})
		return err
	})
	o.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		o.metrics.RecordCollaboratorError(ctx, "transcriber")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("annotate: transcribe: %w", ErrTransientTimeout)
		}
		return nil, fmt.Errorf("annotate: transcribe: %w", ErrCollaboratorUnavailable)
	}
	return segs, nil
}

func (o *Orchestrator) transcode(ctx context.Context, inputPath, outputPath string) error {
	start := time.Now()
	err := o.transcoderBreaker.Execute(func() error {
		return o.transcoder.Convert(ctx, inputPath, outputPath)
	})
	o.metrics.TranscodeDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		o.metrics.RecordCollaboratorError(ctx, "transcoder")
		return fmt.Errorf("annotate: transcode: %w", ErrCorruptInput)
	}
	return nil
}

func (o *Orchestrator) diarize(ctx context.Context, pcmPath string, numSpeakersHint int) ([]speaker.Turn, error) {
	start := time.Now()
	var turns []diarizer.Turn
	err := o.diarizerBreaker.Execute(func() error {
		var err error
		turns, err = o.diarizer.GetSpeakerTurns(ctx, pcmPath, numSpeakersHint)
		return err
	})
	o.metrics.DiarizeDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		o.metrics.RecordCollaboratorError(ctx, "diarizer")
		return nil, fmt.Errorf("annotate: diarize: %w", err)
	}
	return toSpeakerTurns(turns), nil
}

// resolveSpeakers runs the identity resolver under the session's mutex and
// persists the result. Failures are never surfaced — the caller always gets
// back the turns, resolved or passed through.
func (o *Orchestrator) resolveSpeakers(ctx context.Context, sessionID, pcmPath string, turns []speaker.Turn, numSpeakersHint int) []speaker.Turn {
	unlock := o.store.Lock(sessionID)
	defer unlock()

	sess := o.store.GetOrCreate(sessionID)
	outcome := &speaker.Outcome{}

	resolved := speaker.Resolve(ctx, o.store, sess, embedAdapter{o.embedder, o.embedderBreaker, o.metrics}, pcmPath, turns, numSpeakersHint, outcome)

	o.store.Save(sessionID)

	if outcome.Matches > 0 {
		o.metrics.SpeakerMatches.Add(ctx, int64(outcome.Matches))
	}
	if outcome.Allocations > 0 {
		o.metrics.SpeakerAllocations.Add(ctx, int64(outcome.Allocations))
	}
	if outcome.Fallbacks > 0 {
		o.metrics.SpeakerFallbacks.Add(ctx, int64(outcome.Fallbacks))
	}

	return resolved
}

// embedAdapter satisfies speaker.Embedder by wrapping an embedder.Provider
// with circuit-breaker protection.
type embedAdapter struct {
	provider embedder.Provider
	breaker  *resilience.CircuitBreaker
	metrics  *observe.Metrics
}

func (a embedAdapter) Embed(ctx context.Context, path string, start, end float64) (speaker.Embedding, bool, error) {
	var (
		vec []float32
		ok  bool
	)
	callStart := time.Now()
	err := a.breaker.Execute(func() error {
		var err error
		vec, ok, err = a.provider.Embed(ctx, path, start, end)
		return err
	})
	a.metrics.EmbedDuration.Record(ctx, time.Since(callStart).Seconds())
	if err != nil {
		a.metrics.RecordCollaboratorError(ctx, "embedder")
		return nil, false, err
	}
	return speaker.Embedding(vec), ok, nil
}

func toMergeSegments(segs []transcriber.Segment) []merge.Segment {
	out := make([]merge.Segment, len(segs))
	for i, s := range segs {
		out[i] = merge.Segment{Text: s.Text, Start: s.Start, End: s.End}
	}
	return out
}

func toSpeakerTurns(turns []diarizer.Turn) []speaker.Turn {
	out := make([]speaker.Turn, len(turns))
	for i, t := range turns {
		out[i] = speaker.Turn{LocalLabel: t.LocalLabel, Start: t.Start, End: t.End}
	}
	return out
}

func concatText(segs []transcriber.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

func sibling(path, newExt string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + newExt
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("annotate: failed to remove temp file", "path", path, "error", err)
	}
}
