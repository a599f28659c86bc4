// Package story holds the alignment snapshots produced for a loaded text.
//
// A story is synthesized one paragraph at a time (plus an optional
// whole-story pass). Each synthesis call yields an immutable [StoryAlignment]
// snapshot: the audio clip and the word spans located inside it. [Book]
// collects the snapshots of the current generation and swaps them atomically
// when the story is re-synthesized, so concurrent readers never observe a
// half-replaced generation.
package story

import (
	"sync"

	"github.com/brianfoody/woodpecker-reading-app/internal/align"
)

// WholeStory is the ParagraphIndex value marking a snapshot that covers the
// entire story rather than a single paragraph.
const WholeStory = -1

// StoryAlignment is the output of one timestamped synthesis call. It is
// immutable: regenerated stories replace snapshots wholesale.
type StoryAlignment struct {
	// Audio is the encoded clip for the paragraph (or the whole story).
	Audio []byte

	// Spans locates each spoken word inside Audio, in reading order. Empty
	// when alignment failed and the paragraph degraded to plain audio.
	Spans []align.WordSpan

	// ParagraphIndex is the zero-based paragraph this snapshot covers, or
	// WholeStory.
	ParagraphIndex int
}

// Book is the current generation of story alignments. Safe for concurrent
// use.
type Book struct {
	mu         sync.RWMutex
	text       string
	paragraphs []StoryAlignment
	whole      *StoryAlignment
}

// NewBook returns an empty Book.
func NewBook() *Book {
	return &Book{}
}

// Replace atomically installs a new generation: the source text, its
// paragraph snapshots in order, and the optional whole-story snapshot.
// Previous snapshots become garbage; readers holding them keep consistent
// (if stale) data.
func (b *Book) Replace(text string, paragraphs []StoryAlignment, whole *StoryAlignment) {
	ps := make([]StoryAlignment, len(paragraphs))
	copy(ps, paragraphs)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	b.paragraphs = ps
	b.whole = whole
}

// Clear drops all snapshots, returning the Book to its empty state.
func (b *Book) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = ""
	b.paragraphs = nil
	b.whole = nil
}

// Text returns the source text of the current generation.
func (b *Book) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Len returns the number of paragraph snapshots.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.paragraphs)
}

// Paragraph returns the snapshot for the given paragraph index.
func (b *Book) Paragraph(i int) (StoryAlignment, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.paragraphs) {
		return StoryAlignment{}, false
	}
	return b.paragraphs[i], true
}

// Whole returns the whole-story snapshot, if one was generated.
func (b *Book) Whole() (StoryAlignment, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.whole == nil {
		return StoryAlignment{}, false
	}
	return *b.whole, true
}

// SpanAt resolves the word span at position pos within a snapshot: the
// by-position lookup used for bounded-segment playback. paragraph selects a
// paragraph snapshot, or WholeStory for the whole-story one. The second
// return is false when the snapshot or position does not exist.
func (b *Book) SpanAt(paragraph, pos int) (align.WordSpan, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var snap *StoryAlignment
	switch {
	case paragraph == WholeStory:
		snap = b.whole
	case paragraph >= 0 && paragraph < len(b.paragraphs):
		snap = &b.paragraphs[paragraph]
	}
	if snap == nil || pos < 0 || pos >= len(snap.Spans) {
		return align.WordSpan{}, false
	}
	return snap.Spans[pos], true
}
