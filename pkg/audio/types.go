// Package audio probes, decodes, cuts, and re-encodes the audio clips the
// reading engine works with.
//
// Two container formats are supported: WAV (RIFF PCM) and MP3, the formats
// speech providers return. Decoding always lands in 16-bit little-endian
// interleaved PCM ([PCM]); durations are computed from decoded sample counts
// rather than container headers, so a truncated clip reports the length that
// will actually play.
package audio

import "time"

// Kind identifies a clip's container format.
type Kind int

const (
	// KindUnknown means the clip matched no supported container signature.
	KindUnknown Kind = iota

	// KindWAV is a RIFF/WAVE container with PCM samples.
	KindWAV

	// KindMP3 is an MPEG audio stream, with or without an ID3 tag.
	KindMP3
)

// String returns the short lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindWAV:
		return "wav"
	case KindMP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// DetectKind sniffs the container format from the first bytes of data.
func DetectKind(data []byte) Kind {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return KindWAV
	}
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return KindMP3
	}
	// Raw MPEG frame sync: 11 set bits.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return KindMP3
	}
	return KindUnknown
}

// PCM holds decoded 16-bit little-endian interleaved samples.
type PCM struct {
	// Data is the raw sample bytes, 2 bytes per sample per channel.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// Frames returns the number of sample frames (one sample per channel).
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Data) / 2 / p.Channels
}

// Duration returns the playing time of the decoded samples.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(p.Frames()) / float64(p.SampleRate) * float64(time.Second))
}
