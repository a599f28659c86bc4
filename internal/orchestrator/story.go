package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brianfoody/woodpecker-reading-app/internal/align"
	"github.com/brianfoody/woodpecker-reading-app/internal/observe"
	"github.com/brianfoody/woodpecker-reading-app/internal/story"
	"github.com/brianfoody/woodpecker-reading-app/internal/text"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech"
)

// SynthesizeStory synthesizes every paragraph of storyText with character
// timestamps, concurrently, and builds word spans for highlighting. It
// returns one alignment per paragraph in source order plus a whole-story
// alignment for continuous playback (nil when whole-story synthesis failed).
//
// Degradation is per paragraph: a paragraph whose timestamped synthesis or
// span building fails keeps its audio without spans, and a paragraph whose
// synthesis fails entirely is returned empty. SynthesizeStory only errors
// when ctx is cancelled or no paragraph produced any audio at all.
func (o *Orchestrator) SynthesizeStory(ctx context.Context, storyText string) ([]story.StoryAlignment, *story.StoryAlignment, error) {
	paragraphs := text.SplitParagraphs(storyText)
	if len(paragraphs) == 0 {
		return nil, nil, nil
	}

	results := make([]story.StoryAlignment, len(paragraphs))
	errs := make([]error, len(paragraphs))

	var eg errgroup.Group
	if o.limit > 0 {
		eg.SetLimit(o.limit)
	}
	for i, para := range paragraphs {
		eg.Go(func() error {
			results[i], errs[i] = o.synthesizeParagraph(ctx, para, i)
			return nil
		})
	}

	// The whole-story track is one more synthesis over the full text. With a
	// single paragraph it would be byte-identical, so that case reuses the
	// paragraph result below.
	var (
		wholeRes story.StoryAlignment
		wholeErr error
	)
	if len(paragraphs) > 1 {
		full := strings.Join(paragraphs, "\n\n")
		eg.Go(func() error {
			wholeRes, wholeErr = o.synthesizeParagraph(ctx, full, story.WholeStory)
			return nil
		})
	}

	_ = eg.Wait() // paragraph failures are recorded in errs, never returned
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	anyAudio := false
	var lastErr error
	for i := range results {
		if len(results[i].Audio) > 0 {
			anyAudio = true
		}
		if errs[i] != nil {
			lastErr = errs[i]
		}
	}
	if !anyAudio {
		if lastErr == nil {
			lastErr = wholeErr
		}
		if lastErr == nil {
			return nil, nil, errors.New("orchestrator: story synthesis produced no audio")
		}
		return nil, nil, fmt.Errorf("orchestrator: story synthesis produced no audio: %w", lastErr)
	}

	var whole *story.StoryAlignment
	switch {
	case len(paragraphs) == 1:
		w := results[0]
		w.ParagraphIndex = story.WholeStory
		whole = &w
	case wholeErr == nil && len(wholeRes.Audio) > 0:
		whole = &wholeRes
	default:
		o.log.Warn("whole-story synthesis failed, per-paragraph playback only",
			"error", wholeErr)
	}

	return results, whole, nil
}

// synthesizeParagraph produces one paragraph's audio, with spans when the
// provider supports timestamped synthesis and alignment succeeds.
func (o *Orchestrator) synthesizeParagraph(ctx context.Context, para string, index int) (story.StoryAlignment, error) {
	m := observe.DefaultMetrics()

	start := time.Now()
	aligned, err := o.provider.SynthesizeAligned(ctx, para)
	m.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil {
		m.RecordProviderRequest(ctx, o.provider.Name(), "speech", "ok")
		return story.StoryAlignment{
			Audio:          aligned.Audio,
			Spans:          o.buildSpans(ctx, aligned, index),
			ParagraphIndex: index,
		}, nil
	}

	if errors.Is(err, speech.ErrAlignmentUnsupported) {
		o.log.Debug("provider has no timestamped synthesis, paragraph will not highlight",
			"paragraph", index)
	} else {
		m.RecordProviderRequest(ctx, o.provider.Name(), "speech", "error")
		m.RecordProviderError(ctx, o.provider.Name(), "speech")
		o.log.Warn("timestamped synthesis failed, retrying without alignment",
			"paragraph", index, "error", err)
	}

	data, serr := o.provider.Synthesize(ctx, para)
	if serr != nil {
		m.RecordProviderRequest(ctx, o.provider.Name(), "speech", "error")
		m.RecordProviderError(ctx, o.provider.Name(), "speech")
		o.log.Warn("paragraph synthesis failed", "paragraph", index, "error", serr)
		return story.StoryAlignment{ParagraphIndex: index},
			fmt.Errorf("orchestrator: paragraph %d: %w", index, serr)
	}
	m.RecordProviderRequest(ctx, o.provider.Name(), "speech", "ok")
	return story.StoryAlignment{Audio: data, ParagraphIndex: index}, nil
}

// buildSpans converts character timestamps to word spans, degrading to nil
// when the alignment arrays are unusable.
func (o *Orchestrator) buildSpans(ctx context.Context, aligned *speech.AlignedAudio, index int) []align.WordSpan {
	m := observe.DefaultMetrics()

	start := time.Now()
	spans, err := align.BuildWordSpans(aligned.Chars, aligned.StartSec, aligned.EndSec)
	m.AlignmentDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.log.Warn("word span building failed, paragraph will not highlight",
			"paragraph", index, "error", err)
		return nil
	}
	return spans
}
