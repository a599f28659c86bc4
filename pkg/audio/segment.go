package audio

import (
	"fmt"
	"log/slog"
)

// ExtractSegment cuts the [startSec, endSec] window out of a WAV or MP3 clip
// and returns it as a WAV clip at the source sample rate and channel count.
//
// startSec must be non-negative and endSec must be greater than startSec. An
// endSec beyond the clip's duration is clamped to the duration (with a
// warning) rather than rejected, so a span whose end time slightly overruns
// the clip still extracts. A window that lies entirely past the end of the
// clip yields a valid zero-sample WAV.
func ExtractSegment(data []byte, startSec, endSec float64) ([]byte, error) {
	if startSec < 0 {
		return nil, fmt.Errorf("audio: extract segment: start time must be non-negative, got %v", startSec)
	}
	if endSec <= startSec {
		return nil, fmt.Errorf("audio: extract segment: end time (%v) must be greater than start time (%v)", endSec, startSec)
	}

	pcm, err := DecodeToPCM(data)
	if err != nil {
		return nil, fmt.Errorf("audio: extract segment: %w", err)
	}

	clipSec := pcm.Duration().Seconds()
	if endSec > clipSec {
		slog.Warn("segment end exceeds clip duration, clamping",
			"end_sec", endSec,
			"clip_sec", clipSec,
		)
		endSec = clipSec
	}

	frameBytes := pcm.Channels * 2
	startFrame := int(startSec * float64(pcm.SampleRate))
	endFrame := int(endSec * float64(pcm.SampleRate))
	if total := pcm.Frames(); endFrame > total {
		endFrame = total
	}
	if startFrame > endFrame {
		startFrame = endFrame
	}

	cut := pcm.Data[startFrame*frameBytes : endFrame*frameBytes]
	return EncodeWAV(cut, pcm.SampleRate, pcm.Channels), nil
}
