// Package config loads diarserver's runtime settings from the environment,
// loading an optional .env file first and then reading os.Getenv.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable setting diarserver needs to start.
type Config struct {
	ListenAddr string
	LogLevel   string

	TranscriberURL     string
	DiarizerURL        string
	EmbedderURL        string
	EmbedderAPIKey     string
	EmbedderDimensions int

	TranscoderBinary string

	SpeakerPersistDir string

	TranscribeTimeout time.Duration

	CircuitBreakerMaxFailures  int
	CircuitBreakerResetTimeout time.Duration
	CircuitBreakerHalfOpenMax  int
}

// Load reads a .env file if present, then layers environment variables over
// the defaults below, and validates the required collaborator endpoints.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment only", "error", err)
	}

	cfg := &Config{
		ListenAddr: getEnvOrDefault("LISTEN_ADDR", ":8080"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),

		TranscriberURL:     os.Getenv("TRANSCRIBER_URL"),
		DiarizerURL:        os.Getenv("DIARIZER_URL"),
		EmbedderURL:        os.Getenv("EMBEDDER_URL"),
		EmbedderAPIKey:     os.Getenv("EMBEDDER_API_KEY"),
		EmbedderDimensions: getIntEnvOrDefault("EMBEDDER_DIMENSIONS", 0),

		TranscoderBinary: getEnvOrDefault("TRANSCODER_BINARY", "ffmpeg"),

		SpeakerPersistDir: getEnvOrDefault("SPEAKER_PERSIST_DIR", "./data/speakers"),

		TranscribeTimeout: getDurationEnvOrDefault("TRANSCRIBE_TIMEOUT", 5*time.Minute),

		CircuitBreakerMaxFailures:  getIntEnvOrDefault("CIRCUIT_BREAKER_MAX_FAILURES", 5),
		CircuitBreakerResetTimeout: getDurationEnvOrDefault("CIRCUIT_BREAKER_RESET_TIMEOUT", 30*time.Second),
		CircuitBreakerHalfOpenMax:  getIntEnvOrDefault("CIRCUIT_BREAKER_HALF_OPEN_MAX", 3),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.TranscriberURL == "" {
		return fmt.Errorf("config: TRANSCRIBER_URL is required")
	}
	if c.DiarizerURL == "" {
		return fmt.Errorf("config: DIARIZER_URL is required")
	}
	if c.EmbedderURL == "" {
		return fmt.Errorf("config: EMBEDDER_URL is required")
	}
	if c.SpeakerPersistDir == "" {
		return fmt.Errorf("config: SPEAKER_PERSIST_DIR must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
