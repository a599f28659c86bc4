// Package orchestrator turns text into per-word audio.
//
// The sentence path tokenizes input, resolves each word against the session
// cache, and synthesizes only the misses, concurrently, through the
// configured speech provider. The story path synthesizes whole paragraphs
// with character timestamps and builds word spans for karaoke highlighting.
//
// Synthesis failures degrade instead of propagating: a word that cannot be
// synthesized yields a zero-length placeholder entry that playback renders as
// a fixed delay, and a paragraph that cannot be aligned keeps its audio
// without spans.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/brianfoody/woodpecker-reading-app/internal/observe"
	"github.com/brianfoody/woodpecker-reading-app/internal/text"
	"github.com/brianfoody/woodpecker-reading-app/internal/wordcache"
	"github.com/brianfoody/woodpecker-reading-app/pkg/audio"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech"
)

// defaultFallbackDuration is assigned to fresh audio whose duration could not
// be probed, so playback timing never blocks on an undecodable clip.
const defaultFallbackDuration = 500 * time.Millisecond

// WordError records a synthesis failure for one word. The word still appears
// in the sentence result with a placeholder entry; the error travels alongside
// so callers can report it without losing the rest of the sentence.
type WordError struct {
	// Word is the clean form that failed to synthesize.
	Word string

	// Err is the underlying provider error.
	Err error
}

func (e *WordError) Error() string {
	return "orchestrator: synthesize " + strconv.Quote(e.Word) + ": " + e.Err.Error()
}

func (e *WordError) Unwrap() error { return e.Err }

// WordAudio pairs one token of the input sentence with its resolved audio.
type WordAudio struct {
	// Token is the source token, position and raw form included.
	Token text.WordToken

	// Entry is the cached or freshly synthesized audio for Token.Clean. For a
	// failed word this is a zero-length placeholder (Audio nil, Duration 0).
	Entry wordcache.Entry

	// Err is non-nil when the word degraded to a placeholder. Always a
	// [*WordError].
	Err error
}

// Config configures [New].
type Config struct {
	// Cache is the session word cache. Required.
	Cache *wordcache.Cache

	// Provider synthesizes words and paragraphs. Required.
	Provider speech.Provider

	// Limit bounds concurrent synthesis calls per operation. Zero means
	// unlimited; the provider client throttles natively.
	Limit int

	// FallbackDuration replaces the probed duration when the audio cannot be
	// decoded. Default: 500 ms.
	FallbackDuration time.Duration

	// Logger receives degradation diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Orchestrator coordinates cache lookups and provider calls for the sentence
// and story paths. Safe for concurrent use.
type Orchestrator struct {
	cache    *wordcache.Cache
	provider speech.Provider
	limit    int
	fallback time.Duration
	log      *slog.Logger

	// flight spans concurrent sentence calls so racing sentences never
	// double-synthesize the same word.
	flight singleflight.Group
}

// New validates cfg and returns a ready Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("orchestrator: cache is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("orchestrator: speech provider is required")
	}
	if cfg.FallbackDuration <= 0 {
		cfg.FallbackDuration = defaultFallbackDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		cache:    cfg.Cache,
		provider: cfg.Provider,
		limit:    cfg.Limit,
		fallback: cfg.FallbackDuration,
		log:      cfg.Logger,
	}, nil
}

// flightResult carries one word's outcome through the singleflight group.
type flightResult struct {
	entry wordcache.Entry
	err   error
}

// SynthesizeSentence resolves every word of sentence to audio, in token
// order. Cached words are served from the session cache; misses are
// deduplicated and synthesized concurrently, then written back.
//
// A word whose synthesis fails gets a zero-length placeholder entry and a
// recorded [*WordError] in its slot; the sentence itself only fails when ctx
// is cancelled. Text with no speakable words yields a nil slice.
func (o *Orchestrator) SynthesizeSentence(ctx context.Context, sentence string) ([]WordAudio, error) {
	tokens := text.Tokenize(sentence)
	if len(tokens) == 0 {
		return nil, nil
	}

	// Resolve against the cache once per unique word.
	resolved := make(map[string]flightResult, len(tokens))
	var misses []string
	for _, tok := range tokens {
		if _, ok := resolved[tok.Clean]; ok {
			continue
		}
		entry, err := o.cache.Get(ctx, tok.Clean)
		if err == nil {
			resolved[tok.Clean] = flightResult{entry: entry}
			continue
		}
		if !errors.Is(err, wordcache.ErrNotFound) {
			o.log.Warn("cache lookup failed, treating as miss",
				"word", tok.Clean, "error", err)
		}
		resolved[tok.Clean] = flightResult{} // reserve the slot for dedup
		misses = append(misses, tok.Clean)
	}

	// Synthesize all misses before assembling anything.
	if len(misses) > 0 {
		results := make([]flightResult, len(misses))
		var eg errgroup.Group
		if o.limit > 0 {
			eg.SetLimit(o.limit)
		}
		for i, word := range misses {
			eg.Go(func() error {
				results[i] = o.synthesizeWord(ctx, word)
				return nil
			})
		}
		_ = eg.Wait() // goroutines record failures per word, never return them
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, word := range misses {
			resolved[word] = results[i]
		}
	}

	// Assemble in token order regardless of completion order.
	out := make([]WordAudio, len(tokens))
	for i, tok := range tokens {
		res := resolved[tok.Clean]
		out[i] = WordAudio{Token: tok, Entry: res.entry, Err: res.err}
	}
	return out, nil
}

// synthesizeWord resolves one cache miss through the singleflight group.
// Concurrent sentences requesting the same word share a single provider call.
func (o *Orchestrator) synthesizeWord(ctx context.Context, word string) flightResult {
	v, _, _ := o.flight.Do(word, func() (any, error) {
		// A racing sentence may have written the word after our lookup
		// missed; re-check before paying for a provider call.
		if entry, err := o.cache.Get(ctx, word); err == nil {
			return flightResult{entry: entry}, nil
		}
		return o.synthesizeWordUncached(ctx, word), nil
	})
	return v.(flightResult)
}

// synthesizeWordUncached performs the provider call, duration probe, and
// cache write-back for a single word. Failures degrade to a placeholder.
func (o *Orchestrator) synthesizeWordUncached(ctx context.Context, word string) flightResult {
	m := observe.DefaultMetrics()

	start := time.Now()
	data, err := o.provider.Synthesize(ctx, word)
	m.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		m.RecordProviderRequest(ctx, o.provider.Name(), "speech", "error")
		m.RecordProviderError(ctx, o.provider.Name(), "speech")
		m.RecordSynthesisFailure(ctx)
		o.log.Warn("word synthesis failed, using placeholder",
			"word", word, "provider", o.provider.Name(), "error", err)
		return flightResult{
			entry: wordcache.Entry{Word: word},
			err:   &WordError{Word: word, Err: err},
		}
	}
	m.RecordProviderRequest(ctx, o.provider.Name(), "speech", "ok")

	duration, perr := audio.Probe(data)
	if perr != nil {
		duration = o.fallback
		m.RecordProbeFallback(ctx)
		o.log.Warn("duration probe failed, using fallback",
			"word", word, "fallback", o.fallback, "error", perr)
	}

	if cerr := o.cache.Put(ctx, word, data, duration); cerr != nil {
		o.log.Warn("cache write failed", "word", word, "error", cerr)
	}

	return flightResult{entry: wordcache.Entry{
		Word:     word,
		Audio:    data,
		Duration: duration,
	}}
}
