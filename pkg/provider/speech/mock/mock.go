// Package mock provides a test double for the speech.Provider interface.
//
// Use Provider to script synthesis results per input text and to verify what
// was requested. Example:
//
//	p := &mock.Provider{
//	    SynthesizeResults: map[string][]byte{"cat": []byte("cat-audio")},
//	    SynthesizeErrs:    map[string]error{"dog": errors.New("boom")},
//	}
//	audio, err := p.Synthesize(ctx, "cat")
package mock

import (
	"context"
	"sync"

	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
}

// SynthesizeAlignedCall records a single invocation of SynthesizeAligned.
type SynthesizeAlignedCall struct {
	// Ctx is the context passed to SynthesizeAligned.
	Ctx context.Context
	// Text is the text passed to SynthesizeAligned.
	Text string
}

// Provider is a mock implementation of speech.Provider. All fields and
// methods are safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// NameValue is returned by Name. Defaults to "mock" when empty.
	NameValue string

	// SynthesizeResult is returned by Synthesize when SynthesizeResults has
	// no entry for the requested text.
	SynthesizeResult []byte

	// SynthesizeResults maps input text to the audio returned for it.
	SynthesizeResults map[string][]byte

	// SynthesizeErr, if non-nil, is returned by Synthesize for any text that
	// has no SynthesizeErrs entry.
	SynthesizeErr error

	// SynthesizeErrs maps input text to an error returned for it. An entry
	// here takes precedence over SynthesizeResults.
	SynthesizeErrs map[string]error

	// AlignedResult is returned by SynthesizeAligned when AlignedResults has
	// no entry for the requested text.
	AlignedResult *speech.AlignedAudio

	// AlignedResults maps input text to the aligned audio returned for it.
	AlignedResults map[string]*speech.AlignedAudio

	// AlignedErr, if non-nil, is returned by SynthesizeAligned for any text
	// that has no AlignedErrs entry.
	AlignedErr error

	// AlignedErrs maps input text to an error returned for it. An entry here
	// takes precedence over AlignedResults.
	AlignedErrs map[string]error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// SynthesizeAlignedCalls records every call to SynthesizeAligned in order.
	SynthesizeAlignedCalls []SynthesizeAlignedCall
}

// Synthesize records the call and returns the scripted audio or error for
// the given text.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})

	if err, ok := p.SynthesizeErrs[text]; ok {
		return nil, err
	}
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	if audio, ok := p.SynthesizeResults[text]; ok {
		return audio, nil
	}
	return p.SynthesizeResult, nil
}

// SynthesizeAligned records the call and returns the scripted aligned audio
// or error for the given text.
func (p *Provider) SynthesizeAligned(ctx context.Context, text string) (*speech.AlignedAudio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeAlignedCalls = append(p.SynthesizeAlignedCalls, SynthesizeAlignedCall{Ctx: ctx, Text: text})

	if err, ok := p.AlignedErrs[text]; ok {
		return nil, err
	}
	if p.AlignedErr != nil {
		return nil, p.AlignedErr
	}
	if aligned, ok := p.AlignedResults[text]; ok {
		return aligned, nil
	}
	return p.AlignedResult, nil
}

// Name returns NameValue, or "mock" when unset.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NameValue == "" {
		return "mock"
	}
	return p.NameValue
}

// SynthesizedTexts returns the texts passed to Synthesize so far, in call
// order. Thread-safe.
func (p *Provider) SynthesizedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	texts := make([]string, len(p.SynthesizeCalls))
	for i, c := range p.SynthesizeCalls {
		texts[i] = c.Text
	}
	return texts
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.SynthesizeAlignedCalls = nil
}

// Ensure Provider implements speech.Provider at compile time.
var _ speech.Provider = (*Provider)(nil)
