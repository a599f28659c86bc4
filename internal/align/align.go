// Package align converts character-level synthesis timestamps into word-level
// time spans.
//
// Speech providers that support timestamped synthesis return three parallel
// arrays: the rendered characters, and per-character start and end offsets in
// seconds. [BuildWordSpans] walks that stream once and emits one [WordSpan]
// per word, closing each word on the delimiter that follows it. The whole
// package is pure: no I/O, no clocks, fully deterministic on its inputs.
//
// Times stay in provider-native float64 seconds so spans compare exactly
// against the wire values; playback code converts through [WordSpan.Start]
// and [WordSpan.End] when it needs a [time.Duration].
package align

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/internal/text"
)

// ErrLengthMismatch indicates the character and timestamp arrays disagree in
// length. Returned (wrapped in [*Error]) by [BuildWordSpans].
var ErrLengthMismatch = errors.New("alignment arrays differ in length")

// Error reports malformed alignment input, carrying the three array lengths
// for logging. It unwraps to [ErrLengthMismatch].
type Error struct {
	Chars  int
	Starts int
	Ends   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("align: %d characters against %d start times and %d end times", e.Chars, e.Starts, e.Ends)
}

func (e *Error) Unwrap() error { return ErrLengthMismatch }

// WordSpan is one word's temporal location within a rendered audio clip.
type WordSpan struct {
	// Text is the word exactly as it appeared in the character stream,
	// punctuation included.
	Text string

	// StartSec and EndSec are offsets into the clip, in seconds, copied
	// unmodified from the provider arrays. StartSec <= EndSec.
	StartSec float64
	EndSec   float64

	// CharIndexes are the positions of this word's characters in the source
	// alignment stream, in order.
	CharIndexes []int
}

// Start returns the span start as a [time.Duration].
func (s WordSpan) Start() time.Duration {
	return time.Duration(s.StartSec * float64(time.Second))
}

// End returns the span end as a [time.Duration].
func (s WordSpan) End() time.Duration {
	return time.Duration(s.EndSec * float64(time.Second))
}

// annotation matches a span that is a wholesale bracketed annotation such as
// "[laughs]". Some providers emit these for stage directions; they are not
// speakable words and are filtered from the output.
var annotation = regexp.MustCompile(`^\[.*\]$`)

// BuildWordSpans scans the character stream left to right and groups
// non-delimiter characters into words. Delimiters are space, newline, and
// tab.
//
// A word opens at its first character (StartSec = startSec of that
// character) and closes at the delimiter that follows it (EndSec = endSec of
// the character immediately before the delimiter). A word still open at the
// end of the stream closes with the final character's end time.
//
// Returns [*Error] when the three slices differ in length. Successive spans
// are non-decreasing in StartSec as long as the provider's timestamps are
// monotonic, and never overlap by construction.
func BuildWordSpans(chars []rune, startSec, endSec []float64) ([]WordSpan, error) {
	if len(chars) != len(startSec) || len(chars) != len(endSec) {
		return nil, &Error{Chars: len(chars), Starts: len(startSec), Ends: len(endSec)}
	}

	var (
		spans   []WordSpan
		word    []rune
		indexes []int
		start   float64
	)

	flush := func(end float64) {
		s := WordSpan{
			Text:        string(word),
			StartSec:    start,
			EndSec:      end,
			CharIndexes: indexes,
		}
		if !annotation.MatchString(s.Text) {
			spans = append(spans, s)
		}
		word, indexes = nil, nil
	}

	for i, c := range chars {
		if isDelimiter(c) {
			if len(word) > 0 {
				flush(endSec[i-1])
			}
			continue
		}
		if len(word) == 0 {
			start = startSec[i]
		}
		word = append(word, c)
		indexes = append(indexes, i)
	}
	if len(word) > 0 {
		flush(endSec[len(chars)-1])
	}

	return spans, nil
}

// isDelimiter reports whether c separates words in the alignment stream.
func isDelimiter(c rune) bool {
	return c == ' ' || c == '\n' || c == '\t'
}

// MatchSpansToTokens pairs tokenizer output with spans by cleaned text,
// preserving order. The result has one element per token: the index of the
// matched span, or -1 when no remaining span matches. Matching is greedy and
// in order, so repeated words pair first occurrence to first occurrence.
//
// Both sides are cleaned with [text.CleanWord], the same rule used for cache
// keys, so "there!" in a span matches the token "there".
func MatchSpansToTokens(spans []WordSpan, tokens []text.WordToken) []int {
	matched := make([]int, len(tokens))
	next := 0
	for i, tok := range tokens {
		matched[i] = -1
		for j := next; j < len(spans); j++ {
			if text.CleanWord(spans[j].Text) == tok.Clean {
				matched[i] = j
				next = j + 1
				break
			}
		}
	}
	return matched
}
