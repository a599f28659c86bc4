package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech"
)

// SpeechFallback implements [speech.Provider] with automatic failover across
// multiple synthesis backends. Each backend has its own circuit breaker.
//
// Backends that lack a character timestamp API are remembered after their
// first ErrAlignmentUnsupported response and skipped on later
// SynthesizeAligned calls; the response does not count as a breaker failure
// because the backend itself is healthy.
type SpeechFallback struct {
	group *FallbackGroup[speech.Provider]

	mu      sync.Mutex
	noAlign map[string]bool
}

// Compile-time interface assertion.
var _ speech.Provider = (*SpeechFallback)(nil)

// NewSpeechFallback creates a [SpeechFallback] with primary as the preferred
// backend.
func NewSpeechFallback(primary speech.Provider, primaryName string, cfg FallbackConfig) *SpeechFallback {
	return &SpeechFallback{
		group:   NewFallbackGroup(primary, primaryName, cfg),
		noAlign: make(map[string]bool),
	}
}

// AddFallback registers an additional speech provider as a fallback.
func (f *SpeechFallback) AddFallback(name string, provider speech.Provider) {
	f.group.AddFallback(name, provider)
}

// Name identifies the group in logs, e.g. "fallback(elevenlabs,openai)".
func (f *SpeechFallback) Name() string {
	return "fallback(" + strings.Join(f.group.Names(), ",") + ")"
}

// Synthesize converts text to audio using the first healthy provider.
func (f *SpeechFallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p speech.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text)
	})
}

// SynthesizeAligned converts text to audio with character timestamps using
// the first healthy provider that supports alignment. Returns
// speech.ErrAlignmentUnsupported only when no registered backend can align.
func (f *SpeechFallback) SynthesizeAligned(ctx context.Context, text string) (*speech.AlignedAudio, error) {
	var (
		lastErr error
		tried   bool
	)
	for i := range f.group.entries {
		entry := &f.group.entries[i]

		f.mu.Lock()
		skip := f.noAlign[entry.name]
		f.mu.Unlock()
		if skip {
			continue
		}
		tried = true

		var (
			result      *speech.AlignedAudio
			unsupported bool
		)
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = entry.value.SynthesizeAligned(ctx, text)
			if errors.Is(innerErr, speech.ErrAlignmentUnsupported) {
				// The backend answered; it simply has no timestamp API.
				// Report success to the breaker and route around it.
				unsupported = true
				return nil
			}
			return innerErr
		})
		if err == nil && unsupported {
			f.mu.Lock()
			f.noAlign[entry.name] = true
			f.mu.Unlock()
			lastErr = speech.ErrAlignmentUnsupported
			continue
		}
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	if !tried && lastErr == nil {
		lastErr = speech.ErrAlignmentUnsupported
	}
	return nil, errors.Join(ErrAllFailed, lastErr)
}
