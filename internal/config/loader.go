package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"speech":     {"elevenlabs", "openai", "mock"},
	"transcribe": {"whispercpp", "openai", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${ENV_VAR} references
// (so secrets like API keys can stay out of the file), applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Speech providers: the app cannot synthesize anything without one.
	if len(cfg.Speech.Providers) == 0 {
		errs = append(errs, errors.New("speech.providers must list at least one provider"))
	}
	for i, entry := range cfg.Speech.Providers {
		prefix := fmt.Sprintf("speech.providers[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("speech", entry.Name)
	}

	// Transcribe providers are optional; without one the practice check is
	// unavailable.
	if len(cfg.Transcribe.Providers) == 0 {
		slog.Warn("no transcription provider configured; the reading practice check will be unavailable")
	}
	for i, entry := range cfg.Transcribe.Providers {
		prefix := fmt.Sprintf("transcribe.providers[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("transcribe", entry.Name)
	}

	// Cache / history
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries %d must not be negative", cfg.Cache.MaxEntries))
	}
	if cfg.History.Keep < 0 {
		errs = append(errs, fmt.Errorf("history.keep %d must not be negative", cfg.History.Keep))
	}

	// Playback
	if cfg.Playback.Sink != "" && !cfg.Playback.Sink.IsValid() {
		errs = append(errs, fmt.Errorf("playback.sink %q is invalid; valid values: speaker, null", cfg.Playback.Sink))
	}
	if d := cfg.Playback.ZeroLengthDelayMS; d != 0 && (d < 600 || d > 800) {
		errs = append(errs, fmt.Errorf("playback.zero_length_delay_ms %d is out of range [600, 800]", d))
	}
	if cfg.Playback.PollIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("playback.poll_interval_ms %d must not be negative", cfg.Playback.PollIntervalMS))
	}
	if cfg.Playback.FailsafeMarginMS < 0 {
		errs = append(errs, fmt.Errorf("playback.failsafe_margin_ms %d must not be negative", cfg.Playback.FailsafeMarginMS))
	}
	if cfg.Playback.ActiveWordGraceMS < 0 {
		errs = append(errs, fmt.Errorf("playback.active_word_grace_ms %d must not be negative", cfg.Playback.ActiveWordGraceMS))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
