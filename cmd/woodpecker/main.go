// Command woodpecker is the word-by-word read-along synthesis and playback
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/internal/config"
	"github.com/brianfoody/woodpecker-reading-app/internal/health"
	"github.com/brianfoody/woodpecker-reading-app/internal/history"
	"github.com/brianfoody/woodpecker-reading-app/internal/observe"
	"github.com/brianfoody/woodpecker-reading-app/internal/orchestrator"
	"github.com/brianfoody/woodpecker-reading-app/internal/playback"
	"github.com/brianfoody/woodpecker-reading-app/internal/readcheck"
	"github.com/brianfoody/woodpecker-reading-app/internal/resilience"
	"github.com/brianfoody/woodpecker-reading-app/internal/server"
	"github.com/brianfoody/woodpecker-reading-app/internal/session"
	"github.com/brianfoody/woodpecker-reading-app/internal/wordcache"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech/elevenlabs"
	speechmock "github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech/mock"
	oaspeech "github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech/openai"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/transcribe"
	transcribemock "github.com/brianfoody/woodpecker-reading-app/pkg/provider/transcribe/mock"
	oatranscribe "github.com/brianfoody/woodpecker-reading-app/pkg/provider/transcribe/openai"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/transcribe/whispercpp"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	logLevelFlag := flag.String("log-level", "", "override the configured log level (debug|info|warn|error)")
	addrFlag := flag.String("addr", "", "override the configured listen address")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "woodpecker: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "woodpecker: %v\n", err)
		}
		return 1
	}
	if *logLevelFlag != "" {
		lv := config.LogLevel(*logLevelFlag)
		if !lv.IsValid() {
			fmt.Fprintf(os.Stderr, "woodpecker: invalid -log-level %q\n", *logLevelFlag)
			return 1
		}
		cfg.Server.LogLevel = lv
	}
	if *addrFlag != "" {
		cfg.Server.ListenAddr = *addrFlag
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust it without
	// a restart.
	level := new(slog.LevelVar)
	logger := newLogger(cfg.Server.LogLevel, level)
	slog.SetDefault(logger)

	slog.Info("woodpecker starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Session identity ──────────────────────────────────────────────────────
	sessionID := session.New(time.Now)
	slog.Info("session minted", "session", sessionID)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	speechProvider, err := buildSpeechChain(cfg, reg)
	if err != nil {
		slog.Error("failed to build speech providers", "err", err)
		return 1
	}
	transcribeProvider, err := buildTranscribeChain(cfg, reg)
	if err != nil {
		slog.Error("failed to build transcribe providers", "err", err)
		return 1
	}

	// ── Word cache ────────────────────────────────────────────────────────────
	cache, err := wordcache.Open(ctx, wordcache.Config{
		Dir:       cfg.Cache.Dir,
		SessionID: sessionID,
		MaxHot:    cfg.Cache.MaxEntries,
	})
	if err != nil {
		// The cache degrades to its in-memory layer; synthesis still works.
		slog.Warn("word cache running degraded", "err", err)
	}
	defer func() { _ = cache.Close() }()

	orch, err := orchestrator.New(orchestrator.Config{
		Cache:    cache,
		Provider: speechProvider,
	})
	if err != nil {
		slog.Error("failed to initialise orchestrator", "err", err)
		return 1
	}

	// ── Playback ──────────────────────────────────────────────────────────────
	var sink playback.Sink
	switch cfg.Playback.Sink {
	case config.SinkNull:
		sink = playback.NewNullSink()
	default:
		speaker, err := playback.NewSpeakerSink()
		if err != nil {
			slog.Error("speaker init failed — set playback.sink to null for headless use", "err", err)
			return 1
		}
		sink = speaker
	}

	ctrl, err := playback.New(playback.Config{
		Sink:            sink,
		ZeroLengthDelay: cfg.Playback.ZeroLengthDelay(),
		PollInterval:    cfg.Playback.PollInterval(),
		FailsafeMargin:  cfg.Playback.FailsafeMargin(),
		ActiveWordGrace: cfg.Playback.ActiveWordGrace(),
	})
	if err != nil {
		slog.Error("failed to initialise playback", "err", err)
		return 1
	}

	// ── Reading history ───────────────────────────────────────────────────────
	hist, err := history.Open(ctx, history.Config{Dir: cfg.History.Dir})
	if err != nil {
		slog.Warn("reading history unavailable", "err", err)
		hist = nil
	} else {
		defer func() { _ = hist.Close() }()
		if cfg.History.Keep > 0 {
			removed, err := hist.Prune(ctx, cfg.History.Keep)
			if err != nil {
				slog.Warn("history prune failed", "err", err)
			} else if removed > 0 {
				slog.Info("history pruned", "removed", removed, "keep", cfg.History.Keep)
			}
		}
	}

	// ── Practice checker ──────────────────────────────────────────────────────
	var checker *readcheck.Checker
	if transcribeProvider != nil {
		checker, err = readcheck.NewChecker(transcribeProvider)
		if err != nil {
			slog.Error("failed to initialise practice checker", "err", err)
			return 1
		}
	}

	// ── Health ────────────────────────────────────────────────────────────────
	var checkers []health.Checker
	if hist != nil {
		checkers = append(checkers, health.Checker{
			Name: "history",
			Check: func(ctx context.Context) error {
				_, err := hist.Recent(ctx, 1)
				return err
			},
		})
	}
	checkers = append(checkers, health.Checker{
		Name: "cache",
		Check: func(context.Context) error {
			if cache.Degraded() {
				return errors.New("disk layer unavailable")
			}
			return nil
		},
	})

	// ── Server ────────────────────────────────────────────────────────────────
	srvCfg := server.Config{
		Orchestrator: orch,
		Playback:     ctrl,
		Checker:      checker,
		History:      hist,
		Health:       health.New(sessionID.String(), checkers...),
	}
	if cfg.Server.TLS != nil {
		srvCfg.TLSCert = cfg.Server.TLS.CertFile
		srvCfg.TLSKey = cfg.Server.TLS.KeyFile
	}
	srv, err := server.New(srvCfg)
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}

	// ── Config reload ─────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.Empty() {
			return
		}
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		for _, section := range d.RestartNeeded {
			slog.Warn("config change needs a restart to apply", "section", section)
		}
	})
	if err != nil {
		slog.Warn("config watcher failed to start, hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, sessionID)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx, cfg.Server.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that ship with
// Woodpecker into reg. Each factory receives a config.ProviderEntry and
// constructs the provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Speech ────────────────────────────────────────────────────────────────

	reg.RegisterSpeech("elevenlabs", func(entry config.ProviderEntry) (speech.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.Format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(entry.Format))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, entry.Voice, opts...)
	})

	reg.RegisterSpeech("openai", func(entry config.ProviderEntry) (speech.Provider, error) {
		var opts []oaspeech.Option
		if entry.Model != "" {
			opts = append(opts, oaspeech.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, oaspeech.WithVoice(entry.Voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaspeech.WithBaseURL(entry.BaseURL))
		}
		return oaspeech.New(entry.APIKey, opts...)
	})

	// The mock speaks silence: every word resolves to a zero-length
	// placeholder, which keeps the whole pipeline usable offline.
	reg.RegisterSpeech("mock", func(config.ProviderEntry) (speech.Provider, error) {
		return &speechmock.Provider{AlignedErr: speech.ErrAlignmentUnsupported}, nil
	})

	// ── Transcribe ────────────────────────────────────────────────────────────

	reg.RegisterTranscribe("whispercpp", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []whispercpp.Option
		if entry.Model != "" {
			opts = append(opts, whispercpp.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whispercpp.WithLanguage(entry.Language))
		}
		return whispercpp.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscribe("openai", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []oatranscribe.Option
		if entry.Model != "" {
			opts = append(opts, oatranscribe.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, oatranscribe.WithLanguage(entry.Language))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oatranscribe.WithBaseURL(entry.BaseURL))
		}
		return oatranscribe.New(entry.APIKey, opts...)
	})

	reg.RegisterTranscribe("mock", func(config.ProviderEntry) (transcribe.Provider, error) {
		return &transcribemock.Provider{}, nil
	})
}

// buildSpeechChain instantiates the configured synthesis backends in order
// and wraps them in a fallback group, first entry primary. Unregistered
// names are skipped; at least one backend must be usable.
func buildSpeechChain(cfg *config.Config, reg *config.Registry) (speech.Provider, error) {
	var chain *resilience.SpeechFallback
	for _, entry := range cfg.Speech.Providers {
		p, err := reg.CreateSpeech(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown speech provider — skipping", "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create speech provider %q: %w", entry.Name, err)
		}
		if chain == nil {
			chain = resilience.NewSpeechFallback(p, entry.Name, resilience.FallbackConfig{})
			slog.Info("provider created", "kind", "speech", "name", entry.Name)
		} else {
			chain.AddFallback(entry.Name, p)
			slog.Info("provider created", "kind", "speech", "name", entry.Name, "role", "fallback")
		}
	}
	if chain == nil {
		return nil, errors.New("no usable speech provider configured")
	}
	return chain, nil
}

// buildTranscribeChain is the transcription counterpart of
// [buildSpeechChain]. An empty provider list (or one with no usable entry)
// disables the reading practice check rather than failing startup.
func buildTranscribeChain(cfg *config.Config, reg *config.Registry) (transcribe.Provider, error) {
	if len(cfg.Transcribe.Providers) == 0 {
		return nil, nil
	}
	var chain *resilience.TranscribeFallback
	for _, entry := range cfg.Transcribe.Providers {
		p, err := reg.CreateTranscribe(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown transcribe provider — skipping", "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create transcribe provider %q: %w", entry.Name, err)
		}
		if chain == nil {
			chain = resilience.NewTranscribeFallback(p, entry.Name, resilience.FallbackConfig{})
			slog.Info("provider created", "kind", "transcribe", "name", entry.Name)
		} else {
			chain.AddFallback(entry.Name, p)
			slog.Info("provider created", "kind", "transcribe", "name", entry.Name, "role", "fallback")
		}
	}
	if chain == nil {
		slog.Warn("no usable transcribe provider — reading practice disabled")
		return nil, nil
	}
	return chain, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, id session.ID) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Woodpecker — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Session", id.String())
	printRow("Speech", entryNames(cfg.Speech.Providers))
	printRow("Transcribe", entryNames(cfg.Transcribe.Providers))
	printRow("Playback sink", string(cfg.Playback.Sink))
	printRow("Cache dir", cfg.Cache.Dir)
	printRow("History dir", cfg.History.Dir)
	printRow("Listen addr", cfg.Server.ListenAddr)
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s : %-19s ║\n", label, value)
}

func entryNames(entries []config.ProviderEntry) string {
	if len(entries) == 0 {
		return "(not configured)"
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return strings.Join(names, ", ")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, lvl *slog.LevelVar) *slog.Logger {
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
