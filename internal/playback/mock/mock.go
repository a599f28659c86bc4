// Package mock provides a scripted test double for the playback.Sink
// interface.
//
// By default every started clip stays in flight until the test calls
// Complete; set AutoComplete to finish each clip the moment it starts.
// Position is whatever the test last set, so bounded-segment polling can be
// driven deterministically.
package mock

import (
	"sync"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/internal/playback"
)

// Sink is a mock implementation of playback.Sink. All fields and methods are
// safe for concurrent use.
type Sink struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by every Start call.
	StartErr error

	// AutoComplete, when true, closes each clip's Done channel the moment
	// Start returns.
	AutoComplete bool

	// StartCalls records every clip passed to Start, in order.
	StartCalls []playback.Clip

	// StopCalls counts Stop invocations.
	StopCalls int

	pos       time.Duration
	done      chan struct{}
	completed bool
}

// Start records the clip and opens a fresh Done channel for it.
func (s *Sink) Start(clip playback.Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls = append(s.StartCalls, clip)
	if s.StartErr != nil {
		return s.StartErr
	}
	s.done = make(chan struct{})
	s.completed = false
	if s.AutoComplete {
		close(s.done)
		s.completed = true
	}
	return nil
}

// Stop records the call.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
}

// Position returns the value last given to SetPosition.
func (s *Sink) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// SetPosition scripts the playhead reported by Position.
func (s *Sink) SetPosition(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = d
}

// Done returns the current clip's completion channel, or an already-closed
// channel when nothing was started.
func (s *Sink) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Complete closes the current clip's Done channel, simulating natural end.
// Completing an already-completed or never-started clip is a no-op.
func (s *Sink) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil || s.completed {
		return
	}
	close(s.done)
	s.completed = true
}

// Started reports how many clips have been started so far.
func (s *Sink) Started() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.StartCalls)
}

// Reset clears all recorded calls and scripted state.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls = nil
	s.StopCalls = 0
	s.pos = 0
	s.done = nil
	s.completed = false
}

// Ensure Sink implements playback.Sink at compile time.
var _ playback.Sink = (*Sink)(nil)
