// Package transcribe defines the Provider interface for speech recognition
// backends.
//
// A transcription provider wraps a batch speech-to-text service (e.g., the
// OpenAI audio API or a local whisper.cpp server). Recordings here are short
// (a child reading a word or a sentence aloud), so the interface is a single
// blocking call rather than a streaming session.
//
// Implementations must be safe for concurrent use.
package transcribe

import "context"

// Provider is the abstraction over any transcription backend.
type Provider interface {
	// Transcribe converts the recorded audio to text. format names the audio
	// container ("wav", "mp3") so providers can label the upload correctly.
	// Returns an error if the backend rejects the request or ctx is
	// cancelled.
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)

	// Name identifies the backend (e.g., "whispercpp"). Used in logs and
	// metric labels.
	Name() string
}
