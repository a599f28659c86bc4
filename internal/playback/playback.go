// Package playback owns the single audio output and serializes everything
// that plays through it.
//
// A Controller runs a small state machine (Idle, PlayingWord,
// PlayingSequence, PlayingSegment) over an injected Sink. Starting any
// operation first cancels and stops the one in flight, so at most one
// audible playback exists at any instant; the superseded caller's wait
// resolves with ErrBusySuperseded. The controller also reports the currently
// highlighted word index to the UI, holding it through a short grace period
// after playback ends so chained operations do not flicker.
package playback

import (
	"errors"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/internal/wordcache"
)

// ErrBusySuperseded resolves the wait of an operation that was cancelled by
// a newer one (or by Stop). Callers treat it as a normal outcome.
var ErrBusySuperseded = errors.New("playback: superseded by a newer operation")

// NoHighlight is the word index meaning "no word is highlighted".
const NoHighlight = -1

// State is the controller's current phase.
type State int

const (
	// StateIdle means nothing is playing.
	StateIdle State = iota

	// StatePlayingWord means a single word clip (or its zero-length delay)
	// is in flight.
	StatePlayingWord

	// StatePlayingSequence means a multi-word sequence is in flight.
	StatePlayingSequence

	// StatePlayingSegment means a bounded window of a larger clip is in
	// flight.
	StatePlayingSegment
)

// String returns the short lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlayingWord:
		return "playing_word"
	case StatePlayingSequence:
		return "playing_sequence"
	case StatePlayingSegment:
		return "playing_segment"
	default:
		return "unknown"
	}
}

// Clip is what a Sink plays. It is a sealed tagged variant: sinks dispatch
// on the concrete type, never on optional-field presence.
type Clip interface{ isClip() }

// SingleWordClip plays one standalone word clip from start to finish.
type SingleWordClip struct {
	// Entry is the cached word audio. Never zero-length here; the
	// controller substitutes a delay for placeholders before the sink is
	// involved.
	Entry wordcache.Entry
}

func (SingleWordClip) isClip() {}

// BoundedSegmentOfClip plays the [StartSec, EndSec] window of a larger clip.
// The sink seeks to StartSec and starts; the controller pauses playback once
// the position passes EndSec.
type BoundedSegmentOfClip struct {
	// Audio is the full clip the window is cut from.
	Audio []byte

	// StartSec and EndSec bound the window, in clip time.
	StartSec float64
	EndSec   float64

	// Rate is the playback speed multiplier. 1 is natural speed.
	Rate float64
}

func (BoundedSegmentOfClip) isClip() {}

// Word pairs a word's audio entry with the token index to highlight while it
// plays. Index is NoHighlight when the clip has no position in the text.
type Word struct {
	Index int
	Entry wordcache.Entry
}

// Sink is the audio output owned by the controller. Implementations are
// [SpeakerSink] and the scripted sink in the mock subpackage.
//
// The controller guarantees Stop is called before the next Start, so a sink
// only ever has one clip in flight.
type Sink interface {
	// Start begins audible playback of clip. It returns once playback is
	// running, or an error when the clip cannot be decoded.
	Start(clip Clip) error

	// Stop halts the current playback synchronously, best effort. Stopping
	// an idle sink is a no-op.
	Stop()

	// Position reports the playhead within the current clip, in clip time
	// (unscaled by rate).
	Position() time.Duration

	// Done is closed when the current clip reaches its natural end. A
	// stopped clip never closes its Done channel.
	Done() <-chan struct{}
}
