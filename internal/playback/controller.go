package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/internal/observe"
	"github.com/brianfoody/woodpecker-reading-app/internal/wordcache"
)

const (
	defaultZeroLengthDelay = 700 * time.Millisecond
	defaultPollInterval    = 25 * time.Millisecond
	defaultFailsafeMargin  = 250 * time.Millisecond
	defaultActiveWordGrace = 200 * time.Millisecond

	// changesBuffer bounds the active-word channel; when the consumer lags,
	// the oldest value is dropped so notification never blocks playback.
	changesBuffer = 16
)

// Config configures [New].
type Config struct {
	// Sink is the audio output. Required.
	Sink Sink

	// ZeroLengthDelay substitutes for real playback when a word has a
	// zero-length placeholder, keeping highlight timing consistent.
	// Default: 700 ms; sensible values sit in the 600 to 800 ms range.
	ZeroLengthDelay time.Duration

	// PollInterval is how often bounded-segment playback samples the sink
	// position. Default: 25 ms.
	PollInterval time.Duration

	// FailsafeMargin pads the bounded-segment wait cap beyond the window's
	// scaled length. Default: 250 ms.
	FailsafeMargin time.Duration

	// ActiveWordGrace is how long the active word index persists after
	// playback ends before clearing. Default: 200 ms.
	ActiveWordGrace time.Duration

	// Logger receives playback diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// operation is one in-flight playback. The owning call blocks until it
// completes or is superseded.
type operation struct {
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	superseded atomic.Bool
}

// resolve maps the operation's terminal error to a metric outcome and the
// error returned to the caller. Decode failures resolve the wait with nil;
// they are logged at the call site.
func (op *operation) resolve(err error) (string, error) {
	switch {
	case err == nil:
		return "completed", nil
	case op.superseded.Load():
		return "cancelled", ErrBusySuperseded
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return "cancelled", err
	default:
		return "error", nil
	}
}

// Controller serializes playback over a single Sink. All methods are safe
// for concurrent use; operations block their caller until the playback
// finishes, is cancelled, or is superseded by a newer operation.
type Controller struct {
	sink      Sink
	zeroDelay time.Duration
	poll      time.Duration
	margin    time.Duration
	grace     time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	state   State
	current *operation

	activeMu   sync.Mutex
	activeWord int
	graceGen   uint64
	changes    chan int
}

// New validates cfg and returns an idle Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Sink == nil {
		return nil, errors.New("playback: sink is required")
	}
	if cfg.ZeroLengthDelay <= 0 {
		cfg.ZeroLengthDelay = defaultZeroLengthDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.FailsafeMargin <= 0 {
		cfg.FailsafeMargin = defaultFailsafeMargin
	}
	if cfg.ActiveWordGrace <= 0 {
		cfg.ActiveWordGrace = defaultActiveWordGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		sink:       cfg.Sink,
		zeroDelay:  cfg.ZeroLengthDelay,
		poll:       cfg.PollInterval,
		margin:     cfg.FailsafeMargin,
		grace:      cfg.ActiveWordGrace,
		log:        cfg.Logger,
		state:      StateIdle,
		activeWord: NoHighlight,
		changes:    make(chan int, changesBuffer),
	}, nil
}

// State returns the controller's current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// begin takes ownership of the sink for a new operation, superseding and
// synchronously stopping whatever is currently playing first.
func (c *Controller) begin(parent context.Context, s State) (*operation, error) {
	for {
		if err := parent.Err(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.current == nil {
			ctx, cancel := context.WithCancel(parent)
			op := &operation{ctx: ctx, cancel: cancel, done: make(chan struct{})}
			c.current = op
			c.state = s
			c.mu.Unlock()
			observe.DefaultMetrics().ActivePlaybacks.Add(ctx, 1)
			return op, nil
		}
		cur := c.current
		c.mu.Unlock()

		// Stop-then-start: the superseded operation's wait unwinds before
		// the new one touches the sink.
		cur.superseded.Store(true)
		cur.cancel()
		c.sink.Stop()
		<-cur.done
	}
}

// finish releases sink ownership and returns the controller to Idle.
func (c *Controller) finish(op *operation) {
	c.mu.Lock()
	if c.current == op {
		c.current = nil
		c.state = StateIdle
	}
	c.mu.Unlock()
	op.cancel()
	close(op.done)
	observe.DefaultMetrics().ActivePlaybacks.Add(context.Background(), -1)
}

// Stop cancels the current operation, halts the sink, and waits for the
// operation to unwind. The cancelled caller's wait resolves with
// ErrBusySuperseded. Stopping an idle controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		c.sink.Stop()
		return
	}
	cur.superseded.Store(true)
	cur.cancel()
	c.sink.Stop()
	<-cur.done
}

// PlayWord plays one word clip and blocks until it finishes. A zero-length
// placeholder entry passes through the fixed delay instead of the sink. A
// clip the sink cannot decode resolves the wait with nil; the failure is
// logged and counted only.
func (c *Controller) PlayWord(ctx context.Context, word Word) error {
	op, err := c.begin(ctx, StatePlayingWord)
	if err != nil {
		return err
	}

	c.setActiveWord(word.Index)
	perr := c.playEntry(op, word.Entry)
	if perr != nil && op.ctx.Err() == nil {
		c.log.Warn("word playback failed", "word", word.Entry.Word, "error", perr)
	}

	// Arm the grace clear before releasing the sink: a successor operation
	// can only begin after finish, so its setActiveWord always invalidates
	// this clear.
	c.scheduleClear()
	c.finish(op)
	outcome, err := op.resolve(perr)
	observe.DefaultMetrics().RecordPlaybackOperation(ctx, "word", outcome)
	return err
}

// PlaySequence plays words one at a time in caller order. The cancellation
// flag is checked before each entry: superseded mid-sequence, the current
// entry is halted and no further entry starts. An entry the sink cannot
// decode is skipped with a log line; the rest of the sequence still plays.
func (c *Controller) PlaySequence(ctx context.Context, words []Word) error {
	if len(words) == 0 {
		return nil
	}
	op, err := c.begin(ctx, StatePlayingSequence)
	if err != nil {
		return err
	}

	var opErr error
	anyFailed := false
	for _, w := range words {
		if cerr := op.ctx.Err(); cerr != nil {
			opErr = cerr
			break
		}
		c.setActiveWord(w.Index)
		if perr := c.playEntry(op, w.Entry); perr != nil {
			if op.ctx.Err() != nil {
				opErr = perr
				break
			}
			anyFailed = true
			c.log.Warn("sequence entry failed, continuing",
				"word", w.Entry.Word, "error", perr)
		}
	}

	c.scheduleClear()
	c.finish(op)
	outcome, err := op.resolve(opErr)
	if err == nil && anyFailed {
		outcome = "error"
	}
	observe.DefaultMetrics().RecordPlaybackOperation(ctx, "sequence", outcome)
	return err
}

// PlayBoundedSegment seeks audio to startSec, plays at rate, and pauses once
// the position passes endSec. The wait is capped by a failsafe timer at
// (endSec-startSec)/rate plus the configured margin, so a stalled seek can
// never wedge the controller outside Idle. wordIndex is highlighted while
// the window plays; pass NoHighlight for none.
func (c *Controller) PlayBoundedSegment(ctx context.Context, wordIndex int, audio []byte, startSec, endSec, rate float64) error {
	if rate <= 0 {
		rate = 1
	}
	op, err := c.begin(ctx, StatePlayingSegment)
	if err != nil {
		return err
	}

	c.setActiveWord(wordIndex)
	perr := c.playSegment(op, audio, startSec, endSec, rate)
	if perr != nil && op.ctx.Err() == nil {
		c.log.Warn("segment playback failed",
			"start_sec", startSec, "end_sec", endSec, "error", perr)
	}

	c.scheduleClear()
	c.finish(op)
	outcome, err := op.resolve(perr)
	observe.DefaultMetrics().RecordPlaybackOperation(ctx, "segment", outcome)
	return err
}

// playEntry plays one word entry through the sink, or sleeps the fixed delay
// for a zero-length placeholder.
func (c *Controller) playEntry(op *operation, entry wordcache.Entry) error {
	if len(entry.Audio) == 0 {
		t := time.NewTimer(c.zeroDelay)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-op.ctx.Done():
			return op.ctx.Err()
		}
	}

	if err := c.sink.Start(SingleWordClip{Entry: entry}); err != nil {
		return err
	}
	select {
	case <-c.sink.Done():
		return nil
	case <-op.ctx.Done():
		c.sink.Stop()
		return op.ctx.Err()
	}
}

// playSegment starts the bounded window and waits for natural end, the
// position passing the window end, cancellation, or the failsafe.
func (c *Controller) playSegment(op *operation, audio []byte, startSec, endSec, rate float64) error {
	if endSec <= startSec {
		return nil
	}
	if err := c.sink.Start(BoundedSegmentOfClip{
		Audio:    audio,
		StartSec: startSec,
		EndSec:   endSec,
		Rate:     rate,
	}); err != nil {
		return err
	}

	window := time.Duration((endSec - startSec) / rate * float64(time.Second))
	failsafe := time.NewTimer(window + c.margin)
	defer failsafe.Stop()
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	endPos := time.Duration(endSec * float64(time.Second))

	for {
		select {
		case <-op.ctx.Done():
			c.sink.Stop()
			return op.ctx.Err()
		case <-c.sink.Done():
			return nil
		case <-failsafe.C:
			c.sink.Stop()
			c.log.Warn("segment failsafe elapsed before the window end was reached",
				"window", window, "margin", c.margin)
			return nil
		case <-ticker.C:
			if c.sink.Position() >= endPos {
				c.sink.Stop()
				return nil
			}
		}
	}
}

// ActiveWord reports the currently highlighted word index. The index is
// NoHighlight and ok is false when no word is active.
func (c *Controller) ActiveWord() (int, bool) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	return c.activeWord, c.activeWord != NoHighlight
}

// ActiveWordChanges returns the channel of active-word updates. Each playing
// word's index is delivered once, and NoHighlight after the grace period
// clears. The channel is buffered; when the consumer lags, the oldest value
// is dropped rather than blocking playback.
func (c *Controller) ActiveWordChanges() <-chan int {
	return c.changes
}

// setActiveWord publishes i as the active word and invalidates any pending
// grace-period clear. Negative indexes leave the active word untouched.
func (c *Controller) setActiveWord(i int) {
	if i < 0 {
		return
	}
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	c.graceGen++
	if c.activeWord == i {
		return
	}
	c.activeWord = i
	c.notifyLocked(i)
}

// scheduleClear arms the grace timer that clears the active word after an
// operation ends. A newer operation's setActiveWord invalidates it, so
// chained operations never flicker through NoHighlight.
func (c *Controller) scheduleClear() {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	if c.activeWord == NoHighlight {
		return
	}
	c.graceGen++
	gen := c.graceGen
	time.AfterFunc(c.grace, func() {
		c.activeMu.Lock()
		defer c.activeMu.Unlock()
		if c.graceGen != gen || c.activeWord == NoHighlight {
			return
		}
		c.activeWord = NoHighlight
		c.notifyLocked(NoHighlight)
	})
}

// notifyLocked delivers i to the changes channel without ever blocking.
// Callers hold activeMu.
func (c *Controller) notifyLocked(i int) {
	select {
	case c.changes <- i:
	default:
		select {
		case <-c.changes:
		default:
		}
		select {
		case c.changes <- i:
		default:
		}
	}
}
