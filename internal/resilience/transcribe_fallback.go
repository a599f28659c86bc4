package resilience

import (
	"context"
	"strings"

	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/transcribe"
)

// TranscribeFallback implements [transcribe.Provider] with automatic failover
// across multiple transcription backends. Each backend has its own circuit
// breaker.
type TranscribeFallback struct {
	group *FallbackGroup[transcribe.Provider]
}

// Compile-time interface assertion.
var _ transcribe.Provider = (*TranscribeFallback)(nil)

// NewTranscribeFallback creates a [TranscribeFallback] with primary as the
// preferred backend.
func NewTranscribeFallback(primary transcribe.Provider, primaryName string, cfg FallbackConfig) *TranscribeFallback {
	return &TranscribeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription provider as a fallback.
func (f *TranscribeFallback) AddFallback(name string, provider transcribe.Provider) {
	f.group.AddFallback(name, provider)
}

// Name identifies the group in logs, e.g. "fallback(whispercpp,openai)".
func (f *TranscribeFallback) Name() string {
	return "fallback(" + strings.Join(f.group.Names(), ",") + ")"
}

// Transcribe converts audio to text using the first healthy provider.
func (f *TranscribeFallback) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	return ExecuteWithResult(f.group, func(p transcribe.Provider) (string, error) {
		return p.Transcribe(ctx, audio, format)
	})
}
