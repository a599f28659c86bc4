package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// DecodeToPCM decodes a WAV or MP3 clip to 16-bit little-endian PCM. The
// container is detected from the data itself; [ErrUnknownFormat] is returned
// for anything else (including empty input).
func DecodeToPCM(data []byte) (PCM, error) {
	switch DetectKind(data) {
	case KindWAV:
		return decodeWAV(data)
	case KindMP3:
		return decodeMP3(data)
	default:
		return PCM{}, fmt.Errorf("audio: decode %d bytes: %w", len(data), ErrUnknownFormat)
	}
}

// decodeWAV decodes a RIFF/WAVE clip. Sample widths other than 16 bit are
// rescaled to 16 bit so downstream code only ever sees one width.
func decodeWAV(data []byte) (PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, errors.New("audio: decode wav: not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return PCM{}, errors.New("audio: decode wav: missing format information")
	}

	out := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		s := rescaleTo16(sample, int(dec.BitDepth))
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}

	return PCM{
		Data:       out,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// rescaleTo16 converts a sample of the given source bit depth to int16.
func rescaleTo16(sample, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned.
		return int16((sample - 128) << 8)
	case 24:
		return int16(sample >> 8)
	case 32:
		return int16(sample >> 16)
	default:
		return int16(sample)
	}
}

// decodeMP3 decodes an MPEG audio stream. go-mp3 always produces 16-bit
// stereo at the stream's sample rate.
func decodeMP3(data []byte) (PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("audio: decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return PCM{}, fmt.Errorf("audio: decode mp3: %w", err)
	}
	return PCM{
		Data:       pcm,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}
