package audio_test

import (
	"errors"
	"testing"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/pkg/audio"
)

// rampWAV builds a 16kHz mono WAV clip of the given duration whose samples
// ramp upward, so cut positions are recognisable in tests.
func rampWAV(t *testing.T, seconds float64) []byte {
	t.Helper()
	frames := int(seconds * 16000)
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = int16(i % 30000)
	}
	return audio.EncodeWAV(samplesToBytes(samples), 16000, 1)
}

func TestDetectKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want audio.Kind
	}{
		{name: "wav", data: audio.EncodeWAV(nil, 16000, 1), want: audio.KindWAV},
		{name: "id3 tagged mp3", data: []byte("ID3\x04\x00rest"), want: audio.KindMP3},
		{name: "raw mpeg frame", data: []byte{0xFF, 0xFB, 0x90, 0x00}, want: audio.KindMP3},
		{name: "junk", data: []byte("not audio at all"), want: audio.KindUnknown},
		{name: "empty", data: nil, want: audio.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := audio.DetectKind(tt.data); got != tt.want {
				t.Errorf("DetectKind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	src := samplesToBytes([]int16{0, 1000, -1000, 32767, -32768, 42})
	clip := audio.EncodeWAV(src, 16000, 1)

	pcm, err := audio.DecodeToPCM(clip)
	if err != nil {
		t.Fatalf("DecodeToPCM: %v", err)
	}
	if pcm.SampleRate != 16000 || pcm.Channels != 1 {
		t.Errorf("decoded format = %dHz %dch, want 16000Hz 1ch", pcm.SampleRate, pcm.Channels)
	}
	if len(pcm.Data) != len(src) {
		t.Fatalf("decoded %d bytes, want %d", len(pcm.Data), len(src))
	}
	for i := range src {
		if pcm.Data[i] != src[i] {
			t.Fatalf("decoded byte %d = %#x, want %#x", i, pcm.Data[i], src[i])
		}
	}
}

func TestProbe_WAV(t *testing.T) {
	t.Parallel()

	clip := rampWAV(t, 1.0)
	d, err := audio.Probe(clip)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if d != time.Second {
		t.Errorf("Probe = %v, want 1s", d)
	}
}

func TestProbe_Undecodable(t *testing.T) {
	t.Parallel()

	for _, data := range [][]byte{nil, []byte("garbage bytes here")} {
		_, err := audio.Probe(data)
		if err == nil {
			t.Fatalf("Probe(%d bytes): err = nil, want probe error", len(data))
		}
		var probeErr *audio.ProbeError
		if !errors.As(err, &probeErr) {
			t.Errorf("Probe error %v is not a *ProbeError", err)
		}
		if !errors.Is(err, audio.ErrUnknownFormat) {
			t.Errorf("Probe error %v does not wrap ErrUnknownFormat", err)
		}
	}
}

func TestPCM_Duration(t *testing.T) {
	t.Parallel()

	p := audio.PCM{Data: make([]byte, 32000), SampleRate: 16000, Channels: 1}
	if got := p.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
	if got := p.Frames(); got != 16000 {
		t.Errorf("Frames = %d, want 16000", got)
	}

	stereo := audio.PCM{Data: make([]byte, 32000), SampleRate: 16000, Channels: 2}
	if got := stereo.Duration(); got != 500*time.Millisecond {
		t.Errorf("stereo Duration = %v, want 500ms", got)
	}

	var zero audio.PCM
	if zero.Duration() != 0 || zero.Frames() != 0 {
		t.Error("zero PCM should report zero duration and frames")
	}
}

func TestExtractSegment(t *testing.T) {
	t.Parallel()

	clip := rampWAV(t, 1.0)

	cut, err := audio.ExtractSegment(clip, 0.25, 0.5)
	if err != nil {
		t.Fatalf("ExtractSegment: %v", err)
	}
	pcm, err := audio.DecodeToPCM(cut)
	if err != nil {
		t.Fatalf("DecodeToPCM(cut): %v", err)
	}
	if pcm.Frames() != 4000 {
		t.Errorf("cut frames = %d, want 4000 (0.25s at 16kHz)", pcm.Frames())
	}
	// First cut sample must be the source sample at frame 4000.
	got := bytesToSamples(pcm.Data)[0]
	if want := int16(4000 % 30000); got != want {
		t.Errorf("first cut sample = %d, want %d", got, want)
	}
}

func TestExtractSegment_ClampsEnd(t *testing.T) {
	t.Parallel()

	clip := rampWAV(t, 1.0)
	cut, err := audio.ExtractSegment(clip, 0.5, 5.0)
	if err != nil {
		t.Fatalf("ExtractSegment: %v", err)
	}
	d, err := audio.Probe(cut)
	if err != nil {
		t.Fatalf("Probe(cut): %v", err)
	}
	if d != 500*time.Millisecond {
		t.Errorf("clamped cut duration = %v, want 500ms", d)
	}
}

func TestExtractSegment_WindowPastEnd(t *testing.T) {
	t.Parallel()

	clip := rampWAV(t, 1.0)
	cut, err := audio.ExtractSegment(clip, 2.0, 3.0)
	if err != nil {
		t.Fatalf("ExtractSegment: %v", err)
	}
	d, err := audio.Probe(cut)
	if err != nil {
		t.Fatalf("Probe(cut): %v", err)
	}
	if d != 0 {
		t.Errorf("past-end cut duration = %v, want 0", d)
	}
}

func TestExtractSegment_InvalidRange(t *testing.T) {
	t.Parallel()

	clip := rampWAV(t, 1.0)

	if _, err := audio.ExtractSegment(clip, -0.1, 0.5); err == nil {
		t.Error("negative start: err = nil, want error")
	}
	if _, err := audio.ExtractSegment(clip, 0.5, 0.5); err == nil {
		t.Error("end == start: err = nil, want error")
	}
	if _, err := audio.ExtractSegment(clip, 0.5, 0.2); err == nil {
		t.Error("end < start: err = nil, want error")
	}
}
