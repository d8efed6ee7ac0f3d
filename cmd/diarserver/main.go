// Command diarserver runs the speaker-continuity annotation service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/diarserver/internal/annotate"
	"github.com/MrWong99/diarserver/internal/config"
	"github.com/MrWong99/diarserver/internal/httpapi"
	"github.com/MrWong99/diarserver/internal/observe"
	"github.com/MrWong99/diarserver/internal/resilience"
	"github.com/MrWong99/diarserver/internal/speaker"
	"github.com/MrWong99/diarserver/pkg/provider/diarizer/pyannotehttp"
	"github.com/MrWong99/diarserver/pkg/provider/embedder/voiceprint"
	"github.com/MrWong99/diarserver/pkg/provider/transcoder/ffmpeg"
	"github.com/MrWong99/diarserver/pkg/provider/transcriber/whispercpp"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "diarserver: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("diarserver starting",
		"listen_addr", cfg.ListenAddr,
		"log_level", cfg.LogLevel,
		"transcriber_url", cfg.TranscriberURL,
		"diarizer_url", cfg.DiarizerURL,
		"embedder_url", cfg.EmbedderURL,
	)

	shutdownMetrics, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceName: "diarserver"})
	if err != nil {
		slog.Error("failed to initialize metrics provider", "error", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	transcriberClient, err := whispercpp.New(cfg.TranscriberURL, whispercpp.WithTimeout(cfg.TranscribeTimeout))
	if err != nil {
		slog.Error("failed to construct transcriber client", "error", err)
		return 1
	}

	diarizerClient, err := pyannotehttp.New(cfg.DiarizerURL)
	if err != nil {
		slog.Error("failed to construct diarizer client", "error", err)
		return 1
	}

	embedderOpts := []voiceprint.Option{voiceprint.WithDimensions(cfg.EmbedderDimensions)}
	if cfg.EmbedderAPIKey != "" {
		embedderOpts = append(embedderOpts, voiceprint.WithAPIKey(cfg.EmbedderAPIKey))
	}
	embedderClient, err := voiceprint.New(cfg.EmbedderURL, embedderOpts...)
	if err != nil {
		slog.Error("failed to construct embedder client", "error", err)
		return 1
	}

	transcoderClient, err := ffmpeg.New(cfg.TranscoderBinary)
	if err != nil {
		slog.Error("failed to construct transcoder client", "error", err)
		return 1
	}

	persister, err := speaker.NewPersister(cfg.SpeakerPersistDir)
	if err != nil {
		slog.Error("failed to initialize speaker persistence", "error", err)
		return 1
	}
	store := speaker.NewStore(persister)

	tempDir := os.TempDir()
	cbCfg := resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.CircuitBreakerMaxFailures,
		ResetTimeout: cfg.CircuitBreakerResetTimeout,
		HalfOpenMax:  cfg.CircuitBreakerHalfOpenMax,
	}

	orchestrator := annotate.New(transcriberClient, diarizerClient, embedderClient, transcoderClient,
		store, tempDir, cfg.TranscribeTimeout, cbCfg, metrics)

	server := httpapi.New(orchestrator, store, transcriberClient, diarizerClient, embedderClient, cfg)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(metrics),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.ListenAddr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
		return 1
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Error("metrics shutdown error", "error", err)
	}

	slog.Info("goodbye")
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
