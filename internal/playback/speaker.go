package playback

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	beepmp3 "github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	beepwav "github.com/faiface/beep/wav"

	"github.com/brianfoody/woodpecker-reading-app/pkg/audio"
)

// speakerSampleRate is the fixed mixer rate; clips recorded at other rates
// are resampled on the fly.
const speakerSampleRate = beep.SampleRate(44100)

// SpeakerSink plays clips through the system audio device via beep/speaker.
// The controller serializes access, so at most one clip is in flight.
type SpeakerSink struct {
	mu       sync.Mutex
	ctrl     *beep.Ctrl
	streamer beep.StreamSeekCloser
	format   beep.Format
	done     chan struct{}
}

// NewSpeakerSink initialises the audio device at 44.1 kHz with a 100 ms
// buffer.
func NewSpeakerSink() (*SpeakerSink, error) {
	if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("playback: speaker init: %w", err)
	}
	return &SpeakerSink{}, nil
}

// Start decodes clip and begins audible playback.
func (s *SpeakerSink) Start(clip Clip) error {
	switch c := clip.(type) {
	case SingleWordClip:
		return s.play(c.Entry.Audio, 0, 1)
	case BoundedSegmentOfClip:
		rate := c.Rate
		if rate <= 0 {
			rate = 1
		}
		return s.play(c.Audio, c.StartSec, rate)
	default:
		return fmt.Errorf("playback: unsupported clip type %T", clip)
	}
}

func (s *SpeakerSink) play(data []byte, startSec, rate float64) error {
	if len(data) == 0 {
		return errors.New("playback: empty clip")
	}
	streamer, format, err := decodeClip(data)
	if err != nil {
		return err
	}

	if startSec > 0 {
		n := format.SampleRate.N(time.Duration(startSec * float64(time.Second)))
		if n > streamer.Len() {
			n = streamer.Len()
		}
		if err := streamer.Seek(n); err != nil {
			_ = streamer.Close()
			return fmt.Errorf("playback: seek: %w", err)
		}
	}

	var out beep.Streamer = streamer
	if format.SampleRate != speakerSampleRate || rate != 1 {
		ratio := float64(format.SampleRate) / float64(speakerSampleRate) * rate
		out = beep.ResampleRatio(4, ratio, streamer)
	}

	done := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: beep.Seq(out, beep.Callback(func() { close(done) }))}

	s.mu.Lock()
	if s.streamer != nil {
		_ = s.streamer.Close()
	}
	s.ctrl = ctrl
	s.streamer = streamer
	s.format = format
	s.done = done
	s.mu.Unlock()

	speaker.Play(ctrl)
	return nil
}

// Stop pauses and detaches the current clip. The clip's Done channel never
// closes after a Stop.
func (s *SpeakerSink) Stop() {
	s.mu.Lock()
	ctrl := s.ctrl
	streamer := s.streamer
	s.ctrl = nil
	s.streamer = nil
	s.mu.Unlock()
	if ctrl == nil {
		return
	}

	speaker.Lock()
	ctrl.Paused = true
	speaker.Unlock()
	speaker.Clear()
	_ = streamer.Close()
}

// Position reports the playhead within the current clip, in clip time.
func (s *SpeakerSink) Position() time.Duration {
	s.mu.Lock()
	streamer := s.streamer
	format := s.format
	s.mu.Unlock()
	if streamer == nil || format.SampleRate == 0 {
		return 0
	}

	speaker.Lock()
	pos := streamer.Position()
	speaker.Unlock()
	return format.SampleRate.D(pos)
}

// Done returns the current clip's completion channel, or an already-closed
// channel when nothing is playing.
func (s *SpeakerSink) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// readSeekCloser keeps bytes.Reader's Seek visible through the ReadCloser
// the mp3 decoder wants, so bounded-segment seeks work on MP3 clips.
type readSeekCloser struct{ *bytes.Reader }

func (readSeekCloser) Close() error { return nil }

// decodeClip picks the beep codec from the container signature.
func decodeClip(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch audio.DetectKind(data) {
	case audio.KindWAV:
		s, f, err := beepwav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("playback: decode wav: %w", err)
		}
		return s, f, nil
	case audio.KindMP3:
		s, f, err := beepmp3.Decode(readSeekCloser{bytes.NewReader(data)})
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("playback: decode mp3: %w", err)
		}
		return s, f, nil
	default:
		return nil, beep.Format{}, fmt.Errorf("playback: %w", audio.ErrUnknownFormat)
	}
}

var _ Sink = (*SpeakerSink)(nil)
