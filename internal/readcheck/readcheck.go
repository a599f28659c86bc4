// Package readcheck scores a read-aloud attempt against the text the reader
// was given.
//
// Scoring runs in two stages per expected word:
//
//  1. Alignment: expected words consume heard words greedily in order. Each
//     expected word takes the first not-yet-consumed heard word that matches
//     it; heard words skipped on the way (false starts, fillers) are
//     discarded. A word that matches nothing in the remaining transcript is
//     Missed, and the remaining heard words stay available for the words
//     after it.
//
//  2. Verdict: an exact match on the cleaned forms is Correct. A near miss
//     is Close when the Jaro-Winkler similarity reaches the threshold
//     (default 0.84) or the two words share a Double Metaphone code, so
//     "nite" passes for "night" even though the spellings diverge.
//
// The package-level [Check] is pure and needs no network. [Checker] adds the
// transcription step for scoring a recorded reading.
package readcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/brianfoody/woodpecker-reading-app/internal/observe"
	"github.com/brianfoody/woodpecker-reading-app/internal/text"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/transcribe"
)

// defaultCloseThreshold is the minimum Jaro-Winkler similarity for a Close
// verdict.
const defaultCloseThreshold = 0.84

// Verdict classifies how one expected word was read.
type Verdict int

const (
	// Correct means a heard word matched the expected word exactly.
	Correct Verdict = iota
	// Close means the nearest heard word was a phonetic or spelling near
	// miss.
	Close
	// Missed means no heard word could be matched to the expected word.
	Missed
)

// String returns the lowercase verdict name.
func (v Verdict) String() string {
	switch v {
	case Correct:
		return "correct"
	case Close:
		return "close"
	case Missed:
		return "missed"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// WordResult is the verdict for one expected word. Expected and Heard carry
// the original token text; matching runs on the cleaned forms.
type WordResult struct {
	Expected string
	// Heard is the transcript word the expected word was matched to, empty
	// when Missed.
	Heard   string
	Verdict Verdict
	// Similarity is the Jaro-Winkler similarity to the matched word, 0 when
	// Missed.
	Similarity float64
}

// Result is the scored reading. Score aggregates the verdicts into [0, 1]:
// every Correct word contributes a full point and every Close word half a
// point, divided by the number of expected words.
type Result struct {
	Words []WordResult
	Score float64
}

// Check scores heard against expected using the default close threshold.
// Text with no speakable expected words yields an empty Result.
func Check(expected, heard string) Result {
	return check(expected, heard, defaultCloseThreshold)
}

// Option is a functional option for configuring a [Checker].
type Option func(*Checker)

// WithCloseThreshold sets the minimum Jaro-Winkler score for a Close
// verdict. Default: 0.84.
func WithCloseThreshold(threshold float64) Option {
	return func(c *Checker) {
		c.threshold = threshold
	}
}

// WithLogger sets the logger for transcription diagnostics. Default:
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Checker) {
		c.log = log
	}
}

// Checker pairs the scorer with a transcription backend so a recorded
// reading can be checked end to end. Safe for concurrent use.
type Checker struct {
	provider  transcribe.Provider
	threshold float64
	log       *slog.Logger
}

// NewChecker returns a [Checker] that transcribes recordings through
// provider.
func NewChecker(provider transcribe.Provider, opts ...Option) (*Checker, error) {
	if provider == nil {
		return nil, errors.New("readcheck: transcription provider is required")
	}
	c := &Checker{
		provider:  provider,
		threshold: defaultCloseThreshold,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// CheckRecording transcribes the recorded audio and scores the transcript
// against expected. format names the audio container ("wav", "mp3").
func (c *Checker) CheckRecording(ctx context.Context, expected string, audio []byte, format string) (Result, error) {
	m := observe.DefaultMetrics()

	start := time.Now()
	heard, err := c.provider.Transcribe(ctx, audio, format)
	m.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		m.RecordProviderRequest(ctx, c.provider.Name(), "transcribe", "error")
		m.RecordProviderError(ctx, c.provider.Name(), "transcribe")
		return Result{}, fmt.Errorf("readcheck: transcribe recording: %w", err)
	}
	m.RecordProviderRequest(ctx, c.provider.Name(), "transcribe", "ok")
	c.log.Debug("recording transcribed",
		"provider", c.provider.Name(),
		"heard", heard)

	return check(expected, heard, c.threshold), nil
}

func check(expected, heard string, threshold float64) Result {
	expTokens := text.Tokenize(expected)
	if len(expTokens) == 0 {
		return Result{}
	}
	heardTokens := text.Tokenize(heard)

	words := make([]WordResult, len(expTokens))
	var score float64
	cursor := 0
	for i, tok := range expTokens {
		words[i] = WordResult{Expected: tok.Raw, Verdict: Missed}
		for j := cursor; j < len(heardTokens); j++ {
			verdict, sim, ok := classify(tok.Clean, heardTokens[j].Clean, threshold)
			if !ok {
				continue
			}
			words[i].Heard = heardTokens[j].Raw
			words[i].Verdict = verdict
			words[i].Similarity = sim
			cursor = j + 1
			break
		}
		switch words[i].Verdict {
		case Correct:
			score++
		case Close:
			score += 0.5
		}
	}
	return Result{Words: words, Score: score / float64(len(expTokens))}
}

// classify scores heard against expected on their cleaned forms. ok is false
// when the pair does not match at all.
func classify(expected, heard string, threshold float64) (verdict Verdict, similarity float64, ok bool) {
	sim := matchr.JaroWinkler(expected, heard, false)
	switch {
	case expected == heard:
		return Correct, sim, true
	case sim >= threshold || metaphoneMatch(expected, heard):
		return Close, sim, true
	default:
		return Missed, 0, false
	}
}

// metaphoneMatch reports whether the two words share a Double Metaphone
// code. Empty codes (words with no encodable sound) never match.
func metaphoneMatch(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, code := range [2]string{ap, as} {
		if code == "" {
			continue
		}
		if code == bp || code == bs {
			return true
		}
	}
	return false
}
