package playback

import (
	"sync"
	"time"
)

// NullSink discards audio and completes every clip immediately. It serves
// headless runs (CI, servers without an audio device) where the controller's
// state machine and highlighting still need to operate.
type NullSink struct {
	mu   sync.Mutex
	done chan struct{}
}

// NewNullSink returns a sink that plays nothing.
func NewNullSink() *NullSink { return &NullSink{} }

// Start accepts any clip and reports immediate completion.
func (s *NullSink) Start(clip Clip) error {
	ch := make(chan struct{})
	close(ch)
	s.mu.Lock()
	s.done = ch
	s.mu.Unlock()
	return nil
}

// Stop is a no-op.
func (s *NullSink) Stop() {}

// Position is always zero.
func (s *NullSink) Position() time.Duration { return 0 }

// Done returns an already-closed channel.
func (s *NullSink) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

var _ Sink = (*NullSink)(nil)
