package audio

import (
	"errors"
	"time"
)

// ErrUnknownFormat indicates data matched no supported container signature.
var ErrUnknownFormat = errors.New("unrecognised audio format")

// ProbeError reports that a clip's duration could not be determined. It
// unwraps to the underlying decode error. Callers are expected to fall back
// to a fixed duration rather than propagate it.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string { return "audio: probe: " + e.Err.Error() }

func (e *ProbeError) Unwrap() error { return e.Err }

// Probe returns the playing duration of a WAV or MP3 clip by decoding it.
// Zero-length input and undecodable data return a [*ProbeError]; the decoded
// route means the reported duration matches what a player will actually
// produce, not what the container header claims.
func Probe(data []byte) (time.Duration, error) {
	pcm, err := DecodeToPCM(data)
	if err != nil {
		return 0, &ProbeError{Err: err}
	}
	return pcm.Duration(), nil
}
