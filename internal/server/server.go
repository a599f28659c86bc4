// Package server exposes the reading engine over HTTP and WebSocket.
//
// The surface is thin JSON glue: synthesis endpoints call the orchestrator
// and return encoded audio, playback endpoints hand off to the playback
// controller and return immediately (progress reaches the UI through the
// active-word WebSocket feed), and the practice and history endpoints wrap
// their stores. Every route runs inside observe.Middleware, so requests
// carry trace context and show up in the request-duration histogram.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brianfoody/woodpecker-reading-app/internal/health"
	"github.com/brianfoody/woodpecker-reading-app/internal/history"
	"github.com/brianfoody/woodpecker-reading-app/internal/observe"
	"github.com/brianfoody/woodpecker-reading-app/internal/orchestrator"
	"github.com/brianfoody/woodpecker-reading-app/internal/playback"
	"github.com/brianfoody/woodpecker-reading-app/internal/readcheck"
	"github.com/brianfoody/woodpecker-reading-app/internal/resilience"
	"github.com/brianfoody/woodpecker-reading-app/internal/story"
)

// shutdownTimeout bounds graceful shutdown once the run context is cancelled.
const shutdownTimeout = 10 * time.Second

// Config configures [New].
type Config struct {
	// Orchestrator resolves text to audio. Required.
	Orchestrator *orchestrator.Orchestrator

	// Playback is the playback controller. Required.
	Playback *playback.Controller

	// Checker scores practice recordings. Nil disables /api/practice (503).
	Checker *readcheck.Checker

	// History is the reading-history store. Nil disables /api/history (503).
	History *history.Store

	// Health serves /healthz and /readyz. Defaults to an empty handler with
	// no readiness checks.
	Health *health.Handler

	// TLSCert and TLSKey, when both set, switch Run to TLS.
	TLSCert string
	TLSKey  string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server holds the engine components behind the HTTP surface plus the
// fan-out state for the active-word feed.
type Server struct {
	orch     *orchestrator.Orchestrator
	playback *playback.Controller
	checker  *readcheck.Checker
	history  *history.Store
	health   *health.Handler
	tlsCert  string
	tlsKey   string
	metrics  *observe.Metrics
	log      *slog.Logger

	// book is the server-held story state that /api/play/segment addresses
	// by paragraph and word position.
	book *story.Book

	mu   sync.Mutex
	subs map[chan int]struct{}

	quit     chan struct{}
	quitOnce sync.Once
}

// New validates cfg and returns a Server. The active-word pump starts
// immediately; call [Server.Close] (or let [Server.Run] return) to stop it.
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	if cfg.Playback == nil {
		return nil, errors.New("server: playback controller is required")
	}
	if cfg.Health == nil {
		cfg.Health = health.New("")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		orch:     cfg.Orchestrator,
		playback: cfg.Playback,
		checker:  cfg.Checker,
		history:  cfg.History,
		health:   cfg.Health,
		tlsCert:  cfg.TLSCert,
		tlsKey:   cfg.TLSKey,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		book:     story.NewBook(),
		subs:     make(map[chan int]struct{}),
		quit:     make(chan struct{}),
	}
	go s.pumpActiveWords()
	return s, nil
}

// Handler returns the full route table wrapped in [observe.Middleware].
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sentence", s.handleSentence)
	mux.HandleFunc("POST /api/story", s.handleStory)
	mux.HandleFunc("POST /api/play/word", s.handlePlayWord)
	mux.HandleFunc("POST /api/play/sequence", s.handlePlaySequence)
	mux.HandleFunc("POST /api/play/segment", s.handlePlaySegment)
	mux.HandleFunc("POST /api/play/stop", s.handlePlayStop)
	mux.HandleFunc("GET /ws/active-word", s.handleActiveWordWS)
	mux.HandleFunc("POST /api/practice", s.handlePractice)
	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("POST /api/history", s.handleHistoryAdd)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleHistoryDelete)
	mux.HandleFunc("GET /healthz", s.health.Healthz)
	mux.HandleFunc("GET /readyz", s.health.Readyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(s.metrics)(mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully:
// playback stops, in-flight requests get shutdownTimeout to drain, and the
// active-word feed closes.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.tlsCert != "" && s.tlsKey != "" {
			err = srv.ListenAndServeTLS(s.tlsCert, s.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.Info("http server listening", "addr", addr, "tls", s.tlsCert != "")

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.log.Info("http server stopping")
	s.playback.Stop()
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Close stops the active-word pump and disconnects WebSocket clients. Safe
// to call more than once.
func (s *Server) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// pumpActiveWords consumes the controller's single change feed and fans each
// index out to every connected WebSocket subscriber.
func (s *Server) pumpActiveWords() {
	changes := s.playback.ActiveWordChanges()
	for {
		select {
		case <-s.quit:
			return
		case idx := <-changes:
			s.mu.Lock()
			for ch := range s.subs {
				// Drop the oldest buffered index rather than block the
				// pump on a slow client.
				select {
				case ch <- idx:
				default:
					select {
					case <-ch:
					default:
					}
					select {
					case ch <- idx:
					default:
					}
				}
			}
			s.mu.Unlock()
		}
	}
}

// subscribe registers a new active-word subscriber channel.
func (s *Server) subscribe() chan int {
	ch := make(chan int, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// unsubscribe removes a subscriber channel.
func (s *Server) unsubscribe(ch chan int) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v, reporting a 400 on malformed
// input. The return value says whether the handler should continue.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeEngineError maps an engine failure to a response status. Total
// provider failure is the retryable case; everything else is a plain 500.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, resilience.ErrAllFailed) || errors.Is(err, resilience.ErrCircuitOpen) {
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "5")
	}
	http.Error(w, err.Error(), status)
}
