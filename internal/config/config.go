// Package config provides the configuration schema, loader, and provider
// registry for the Woodpecker reading app.
package config

import (
	"path/filepath"
	"time"
)

// LogLevel controls log verbosity for the Woodpecker server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SinkKind selects the playback output device.
type SinkKind string

const (
	// SinkSpeaker plays audio through the default output device.
	SinkSpeaker SinkKind = "speaker"

	// SinkNull discards audio while keeping playback timing. Meant for
	// headless hosts and CI.
	SinkNull SinkKind = "null"
)

// IsValid reports whether k is a recognised sink kind.
func (k SinkKind) IsValid() bool {
	return k == SinkSpeaker || k == SinkNull
}

// Config is the root configuration structure for Woodpecker.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Speech     SpeechConfig     `yaml:"speech"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Cache      CacheConfig      `yaml:"cache"`
	History    HistoryConfig    `yaml:"history"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the Woodpecker server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// SessionConfig holds settings for app-session state.
type SessionConfig struct {
	// DataDir is the root directory for on-disk state. The cache and
	// history directories default to subdirectories of it.
	DataDir string `yaml:"data_dir"`
}

// SpeechConfig lists the synthesis backends in fallback order.
type SpeechConfig struct {
	// Providers is the ordered provider chain; the first entry is primary
	// and the rest are fallbacks.
	Providers []ProviderEntry `yaml:"providers"`
}

// TranscribeConfig lists the speech-recognition backends in fallback order.
// An empty list disables the reading practice check.
type TranscribeConfig struct {
	Providers []ProviderEntry `yaml:"providers"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "elevenlabs", "openai", "whispercpp").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// Supports ${ENV_VAR} expansion.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. For local
	// backends such as whispercpp this is the server address.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Voice is the provider-specific voice identifier (synthesis only).
	Voice string `yaml:"voice"`

	// Format is the requested audio output format (synthesis only),
	// e.g. "mp3_44100_128".
	Format string `yaml:"format"`

	// Language hints the spoken language to recognition backends.
	Language string `yaml:"language"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// CacheConfig holds settings for the per-session word audio cache.
type CacheConfig struct {
	// Dir is the directory holding the cache database.
	// Default: <session.data_dir>/cache.
	Dir string `yaml:"dir"`

	// MaxEntries bounds the in-memory hot layer. Default: 256.
	MaxEntries int `yaml:"max_entries"`
}

// HistoryConfig holds settings for the reading-history store.
type HistoryConfig struct {
	// Dir is the directory holding the history database.
	// Default: <session.data_dir>/history.
	Dir string `yaml:"dir"`

	// Keep bounds how many records are retained at startup. Zero keeps
	// everything.
	Keep int `yaml:"keep"`
}

// PlaybackConfig tunes the playback controller. All durations are
// milliseconds in YAML.
type PlaybackConfig struct {
	// Sink selects the output: "speaker" or "null". Default: speaker.
	Sink SinkKind `yaml:"sink"`

	// ZeroLengthDelayMS substitutes for playing a word whose synthesis
	// failed. Must stay within [600, 800] when set. Default: 700.
	ZeroLengthDelayMS int `yaml:"zero_length_delay_ms"`

	// PollIntervalMS is the bounded-segment position poll. Default: 25.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// FailsafeMarginMS pads the bounded-segment wait cap. Default: 250.
	FailsafeMarginMS int `yaml:"failsafe_margin_ms"`

	// ActiveWordGraceMS is how long the highlight outlives its word.
	// Default: 200.
	ActiveWordGraceMS int `yaml:"active_word_grace_ms"`
}

// ZeroLengthDelay returns the placeholder delay as a duration.
func (p PlaybackConfig) ZeroLengthDelay() time.Duration {
	return time.Duration(p.ZeroLengthDelayMS) * time.Millisecond
}

// PollInterval returns the position poll interval as a duration.
func (p PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

// FailsafeMargin returns the failsafe pad as a duration.
func (p PlaybackConfig) FailsafeMargin() time.Duration {
	return time.Duration(p.FailsafeMarginMS) * time.Millisecond
}

// ActiveWordGrace returns the highlight grace period as a duration.
func (p PlaybackConfig) ActiveWordGrace() time.Duration {
	return time.Duration(p.ActiveWordGraceMS) * time.Millisecond
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	// ServiceName labels exported metrics and traces. Default: woodpecker.
	ServiceName string `yaml:"service_name"`
}

// applyDefaults fills in the documented defaults on a freshly decoded config.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Session.DataDir == "" {
		cfg.Session.DataDir = "data"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.Session.DataDir, "cache")
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 256
	}
	if cfg.History.Dir == "" {
		cfg.History.Dir = filepath.Join(cfg.Session.DataDir, "history")
	}
	if cfg.Playback.Sink == "" {
		cfg.Playback.Sink = SinkSpeaker
	}
	if cfg.Playback.ZeroLengthDelayMS == 0 {
		cfg.Playback.ZeroLengthDelayMS = 700
	}
	if cfg.Playback.PollIntervalMS == 0 {
		cfg.Playback.PollIntervalMS = 25
	}
	if cfg.Playback.FailsafeMarginMS == 0 {
		cfg.Playback.FailsafeMarginMS = 250
	}
	if cfg.Playback.ActiveWordGraceMS == 0 {
		cfg.Playback.ActiveWordGraceMS = 200
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "woodpecker"
	}
}
