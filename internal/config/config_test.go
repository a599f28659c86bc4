package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/internal/config"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/transcribe"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  tls:
    cert_file: /etc/woodpecker/tls/cert.pem
    key_file: /etc/woodpecker/tls/key.pem

session:
  data_dir: /var/lib/woodpecker

speech:
  providers:
    - name: elevenlabs
      api_key: el-test
      voice: rachel
      model: eleven_multilingual_v2
      format: mp3_44100_128
      options:
        stability: 0.5
    - name: openai
      api_key: sk-test
      voice: alloy

transcribe:
  providers:
    - name: whispercpp
      base_url: http://127.0.0.1:8178
      language: en

cache:
  dir: /var/lib/woodpecker/cache
  max_entries: 512

history:
  dir: /var/lib/woodpecker/history
  keep: 100

playback:
  sink: "null"
  zero_length_delay_ms: 650
  poll_interval_ms: 10
  failsafe_margin_ms: 300
  active_word_grace_ms: 150

telemetry:
  service_name: woodpecker-dev
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Server.TLS == nil {
		t.Fatal("server.tls: got nil, want populated")
	}
	if cfg.Server.TLS.CertFile != "/etc/woodpecker/tls/cert.pem" {
		t.Errorf("server.tls.cert_file: got %q", cfg.Server.TLS.CertFile)
	}
	if cfg.Session.DataDir != "/var/lib/woodpecker" {
		t.Errorf("session.data_dir: got %q", cfg.Session.DataDir)
	}
	if len(cfg.Speech.Providers) != 2 {
		t.Fatalf("speech.providers: got %d, want 2", len(cfg.Speech.Providers))
	}
	if cfg.Speech.Providers[0].Name != "elevenlabs" {
		t.Errorf("speech.providers[0].name: got %q", cfg.Speech.Providers[0].Name)
	}
	if cfg.Speech.Providers[0].Voice != "rachel" {
		t.Errorf("speech.providers[0].voice: got %q", cfg.Speech.Providers[0].Voice)
	}
	if len(cfg.Speech.Providers[0].Options) != 1 {
		t.Errorf("speech.providers[0].options: got %d entries, want 1", len(cfg.Speech.Providers[0].Options))
	}
	if cfg.Speech.Providers[1].Name != "openai" {
		t.Errorf("speech.providers[1].name: got %q", cfg.Speech.Providers[1].Name)
	}
	if len(cfg.Transcribe.Providers) != 1 {
		t.Fatalf("transcribe.providers: got %d, want 1", len(cfg.Transcribe.Providers))
	}
	if cfg.Transcribe.Providers[0].BaseURL != "http://127.0.0.1:8178" {
		t.Errorf("transcribe.providers[0].base_url: got %q", cfg.Transcribe.Providers[0].BaseURL)
	}
	if cfg.Cache.MaxEntries != 512 {
		t.Errorf("cache.max_entries: got %d, want 512", cfg.Cache.MaxEntries)
	}
	if cfg.History.Keep != 100 {
		t.Errorf("history.keep: got %d, want 100", cfg.History.Keep)
	}
	if cfg.Playback.Sink != config.SinkNull {
		t.Errorf("playback.sink: got %q, want %q", cfg.Playback.Sink, config.SinkNull)
	}
	if cfg.Playback.ZeroLengthDelay() != 650*time.Millisecond {
		t.Errorf("playback.zero_length_delay: got %v, want 650ms", cfg.Playback.ZeroLengthDelay())
	}
	if cfg.Telemetry.ServiceName != "woodpecker-dev" {
		t.Errorf("telemetry.service_name: got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_EmptyIsInvalid(t *testing.T) {
	// An empty config fails validation: at least one speech provider is
	// required for the app to do anything.
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err == nil {
		t.Fatal("expected error for empty config, got nil")
	}
	if !strings.Contains(err.Error(), "speech.providers") {
		t.Errorf("error should mention speech.providers, got: %v", err)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	yaml := `
speech:
  providers:
    - name: mock
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("default listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("default log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Session.DataDir != "data" {
		t.Errorf("default data_dir: got %q, want %q", cfg.Session.DataDir, "data")
	}
	if cfg.Cache.Dir != "data/cache" {
		t.Errorf("default cache.dir: got %q, want %q", cfg.Cache.Dir, "data/cache")
	}
	if cfg.Cache.MaxEntries != 256 {
		t.Errorf("default cache.max_entries: got %d, want 256", cfg.Cache.MaxEntries)
	}
	if cfg.History.Dir != "data/history" {
		t.Errorf("default history.dir: got %q, want %q", cfg.History.Dir, "data/history")
	}
	if cfg.History.Keep != 0 {
		t.Errorf("default history.keep: got %d, want 0 (keep everything)", cfg.History.Keep)
	}
	if cfg.Playback.Sink != config.SinkSpeaker {
		t.Errorf("default playback.sink: got %q, want %q", cfg.Playback.Sink, config.SinkSpeaker)
	}
	if cfg.Playback.ZeroLengthDelayMS != 700 {
		t.Errorf("default zero_length_delay_ms: got %d, want 700", cfg.Playback.ZeroLengthDelayMS)
	}
	if cfg.Playback.PollInterval() != 25*time.Millisecond {
		t.Errorf("default poll_interval: got %v, want 25ms", cfg.Playback.PollInterval())
	}
	if cfg.Playback.FailsafeMargin() != 250*time.Millisecond {
		t.Errorf("default failsafe_margin: got %v, want 250ms", cfg.Playback.FailsafeMargin())
	}
	if cfg.Playback.ActiveWordGrace() != 200*time.Millisecond {
		t.Errorf("default active_word_grace: got %v, want 200ms", cfg.Playback.ActiveWordGrace())
	}
	if cfg.Telemetry.ServiceName != "woodpecker" {
		t.Errorf("default service_name: got %q, want %q", cfg.Telemetry.ServiceName, "woodpecker")
	}
}

func TestLoadFromReader_ExpandsEnvVars(t *testing.T) {
	t.Setenv("WOODPECKER_TEST_API_KEY", "el-secret-from-env")
	yaml := `
speech:
  providers:
    - name: elevenlabs
      api_key: ${WOODPECKER_TEST_API_KEY}
      voice: rachel
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Speech.Providers[0].APIKey != "el-secret-from-env" {
		t.Errorf("api_key: got %q, want the expanded env value", cfg.Speech.Providers[0].APIKey)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
speech:
  providers:
    - name: mock
synthesis:
  voice: rachel
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
speech:
  providers:
    - name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingProviderName(t *testing.T) {
	yaml := `
speech:
  providers:
    - api_key: el-test
      voice: rachel
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing provider name, got nil")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error should mention name, got: %v", err)
	}
}

func TestValidate_InvalidSink(t *testing.T) {
	yaml := `
speech:
  providers:
    - name: mock
playback:
  sink: tape
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid sink, got nil")
	}
	if !strings.Contains(err.Error(), "sink") {
		t.Errorf("error should mention sink, got: %v", err)
	}
}

func TestValidate_ZeroLengthDelayOutOfRange(t *testing.T) {
	yaml := `
speech:
  providers:
    - name: mock
playback:
  zero_length_delay_ms: 1500
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range zero_length_delay_ms, got nil")
	}
	if !strings.Contains(err.Error(), "zero_length_delay_ms") {
		t.Errorf("error should mention zero_length_delay_ms, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	yaml := `
server:
  tls:
    cert_file: /etc/woodpecker/tls/cert.pem
speech:
  providers:
    - name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for incomplete tls config, got nil")
	}
	if !strings.Contains(err.Error(), "tls") {
		t.Errorf("error should mention tls, got: %v", err)
	}
}

func TestValidate_NegativeCacheEntries(t *testing.T) {
	yaml := `
speech:
  providers:
    - name: mock
cache:
  max_entries: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative cache.max_entries, got nil")
	}
}

func TestValidate_NegativeHistoryKeep(t *testing.T) {
	yaml := `
speech:
  providers:
    - name: mock
history:
  keep: -10
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative history.keep, got nil")
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownSpeech(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateSpeech(config.ProviderEntry{Name: "nonexistent"})
	if err == nil {
		t.Fatal("expected error for unknown speech provider")
	}
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownTranscribe(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateTranscribe(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

// ── Registry with registered factories ───────────────────────────────────────

func TestRegistry_RegisteredSpeech(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubSpeech{}
	var gotEntry config.ProviderEntry
	reg.RegisterSpeech("stub", func(e config.ProviderEntry) (speech.Provider, error) {
		gotEntry = e
		return want, nil
	})
	got, err := reg.CreateSpeech(config.ProviderEntry{Name: "stub", APIKey: "k", Voice: "v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
	if gotEntry.APIKey != "k" || gotEntry.Voice != "v" {
		t.Errorf("factory entry: got %+v, want api key and voice passed through", gotEntry)
	}
}

func TestRegistry_RegisteredTranscribe(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubTranscribe{}
	reg.RegisterTranscribe("stub", func(e config.ProviderEntry) (transcribe.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateTranscribe(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterSpeech("broken", func(e config.ProviderEntry) (speech.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateSpeech(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

// ── Stub implementations (satisfy interfaces for the compiler) ────────────────

// stubSpeech implements speech.Provider with no-op methods.
type stubSpeech struct{}

func (s *stubSpeech) Synthesize(_ context.Context, _ string) ([]byte, error) { return nil, nil }
func (s *stubSpeech) SynthesizeAligned(_ context.Context, _ string) (*speech.AlignedAudio, error) {
	return nil, speech.ErrAlignmentUnsupported
}
func (s *stubSpeech) Name() string { return "stub" }

// stubTranscribe implements transcribe.Provider.
type stubTranscribe struct{}

func (s *stubTranscribe) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return "", nil
}
func (s *stubTranscribe) Name() string { return "stub" }
