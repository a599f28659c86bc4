// Package speech defines the Provider interface for speech synthesis backends.
//
// A speech provider wraps a text-to-speech service (e.g., ElevenLabs or
// OpenAI) and presents two synthesis forms: Synthesize returns raw audio
// bytes for a short phrase or single word, and SynthesizeAligned returns the
// audio together with per-character timestamps for longer passages. The
// aligned form feeds the word-span builder that drives read-along
// highlighting; providers that cannot report character timing return
// ErrAlignmentUnsupported and callers route passage synthesis elsewhere.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (e.g., several cache misses filled at once).
package speech

import (
	"context"
	"errors"
)

// ErrAlignmentUnsupported is returned by SynthesizeAligned when the backend
// cannot produce character-level timestamps. Callers should fall back to a
// provider that can, or synthesize without alignment.
var ErrAlignmentUnsupported = errors.New("speech: character alignment not supported by this provider")

// AlignedAudio is the result of an aligned synthesis call: the encoded audio
// plus three parallel arrays describing when each character of the spoken
// text is heard. Chars[i] was spoken from StartSec[i] to EndSec[i], measured
// from the start of Audio. The arrays are reported exactly as the backend
// returned them; consumers validate the lengths.
type AlignedAudio struct {
	// Audio is the encoded audio (format depends on provider configuration,
	// typically MP3 or WAV).
	Audio []byte

	// Chars holds one rune per spoken character, including spaces.
	Chars []rune

	// StartSec holds the start time of each character in seconds.
	StartSec []float64

	// EndSec holds the end time of each character in seconds.
	EndSec []float64
}

// Provider is the abstraction over any speech synthesis backend.
type Provider interface {
	// Synthesize converts text to audio and returns the encoded bytes. Used
	// for short inputs such as a single word. Returns an error if the backend
	// rejects the request or ctx is cancelled.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// SynthesizeAligned converts text to audio with per-character timestamps.
	// Returns ErrAlignmentUnsupported if the backend has no timestamp API.
	SynthesizeAligned(ctx context.Context, text string) (*AlignedAudio, error)

	// Name identifies the backend (e.g., "elevenlabs"). Used in logs and
	// metric labels.
	Name() string
}
