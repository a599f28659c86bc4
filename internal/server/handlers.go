package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/internal/history"
	"github.com/brianfoody/woodpecker-reading-app/internal/orchestrator"
	"github.com/brianfoody/woodpecker-reading-app/internal/playback"
	"github.com/brianfoody/woodpecker-reading-app/internal/story"
)

// ── Sentence synthesis ────────────────────────────────────────────────────────

// textRequest is the JSON body shared by the sentence, story, and sequence
// endpoints.
type textRequest struct {
	Text string `json:"text"`
}

// wordAudioJSON is one resolved word in a sentence response. Audio is
// base64-encoded by encoding/json; a failed word has no audio, a zero
// duration, and the error string set.
type wordAudioJSON struct {
	Word       string `json:"word"`
	Clean      string `json:"clean"`
	Index      int    `json:"index"`
	Audio      []byte `json:"audio,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type sentenceResponse struct {
	Words []wordAudioJSON `json:"words"`
}

// handleSentence handles POST /api/sentence.
func (s *Server) handleSentence(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !readJSON(w, r, &req) {
		return
	}

	words, err := s.orch.SynthesizeSentence(r.Context(), req.Text)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sentenceResponse{Words: wordAudioList(words)})
}

func wordAudioList(words []orchestrator.WordAudio) []wordAudioJSON {
	out := make([]wordAudioJSON, len(words))
	for i, wa := range words {
		out[i] = wordAudioJSON{
			Word:       wa.Token.Raw,
			Clean:      wa.Token.Clean,
			Index:      wa.Token.Index,
			Audio:      wa.Entry.Audio,
			DurationMS: wa.Entry.Duration.Milliseconds(),
		}
		if wa.Err != nil {
			out[i].Error = wa.Err.Error()
		}
	}
	return out
}

// ── Story synthesis ───────────────────────────────────────────────────────────

type spanJSON struct {
	Text        string  `json:"text"`
	StartSec    float64 `json:"start_sec"`
	EndSec      float64 `json:"end_sec"`
	CharIndexes []int   `json:"char_indexes,omitempty"`
}

// paragraphJSON is one alignment snapshot. Spans is empty when the paragraph
// degraded to plain audio.
type paragraphJSON struct {
	Paragraph int        `json:"paragraph"`
	Audio     []byte     `json:"audio,omitempty"`
	Spans     []spanJSON `json:"spans,omitempty"`
}

type storyResponse struct {
	Paragraphs []paragraphJSON `json:"paragraphs"`
	Whole      *paragraphJSON  `json:"whole,omitempty"`
}

// handleStory handles POST /api/story. A successful synthesis replaces the
// server-held book (the state /api/play/segment addresses) and records the
// text in the reading history.
func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	paragraphs, whole, err := s.orch.SynthesizeStory(r.Context(), req.Text)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if len(paragraphs) == 0 {
		s.book.Clear()
		writeJSON(w, http.StatusOK, storyResponse{Paragraphs: []paragraphJSON{}})
		return
	}

	s.book.Replace(req.Text, paragraphs, whole)
	s.recordHistory(r.Context(), req.Text)

	resp := storyResponse{Paragraphs: make([]paragraphJSON, len(paragraphs))}
	for i, p := range paragraphs {
		resp.Paragraphs[i] = paragraphView(p)
	}
	if whole != nil {
		v := paragraphView(*whole)
		resp.Whole = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func paragraphView(p story.StoryAlignment) paragraphJSON {
	v := paragraphJSON{
		Paragraph: p.ParagraphIndex,
		Audio:     p.Audio,
		Spans:     make([]spanJSON, len(p.Spans)),
	}
	for i, sp := range p.Spans {
		v.Spans[i] = spanJSON{
			Text:        sp.Text,
			StartSec:    sp.StartSec,
			EndSec:      sp.EndSec,
			CharIndexes: sp.CharIndexes,
		}
	}
	return v
}

// recordHistory saves a successfully synthesized story, when the store is
// available. Failures are logged, never surfaced.
func (s *Server) recordHistory(ctx context.Context, text string) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Add(ctx, text); err != nil {
		s.log.Warn("recording story in history failed", "error", err)
	}
}

// ── Playback ──────────────────────────────────────────────────────────────────

type playResponse struct {
	Status string `json:"status"`
}

type playWordRequest struct {
	Word  string `json:"word"`
	Index int    `json:"index"`
}

// handlePlayWord handles POST /api/play/word. The word resolves through the
// cache (synthesizing on a miss), playback starts, and the response returns
// without waiting for the clip to finish.
func (s *Server) handlePlayWord(w http.ResponseWriter, r *http.Request) {
	req := playWordRequest{Index: playback.NoHighlight}
	if !readJSON(w, r, &req) {
		return
	}

	words, err := s.orch.SynthesizeSentence(r.Context(), req.Word)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if len(words) == 0 {
		http.Error(w, "no speakable word in request", http.StatusBadRequest)
		return
	}
	if len(words) > 1 {
		http.Error(w, "expected a single word", http.StatusBadRequest)
		return
	}

	s.startPlayback(r, func(ctx context.Context) error {
		return s.playback.PlayWord(ctx, playback.Word{Index: req.Index, Entry: words[0].Entry})
	})
	writeJSON(w, http.StatusAccepted, playResponse{Status: "playing"})
}

// handlePlaySequence handles POST /api/play/sequence: the whole text plays
// word by word with highlights following.
func (s *Server) handlePlaySequence(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !readJSON(w, r, &req) {
		return
	}

	words, err := s.orch.SynthesizeSentence(r.Context(), req.Text)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if len(words) == 0 {
		http.Error(w, "no speakable words in request", http.StatusBadRequest)
		return
	}

	seq := make([]playback.Word, len(words))
	for i, wa := range words {
		seq[i] = playback.Word{Index: wa.Token.Index, Entry: wa.Entry}
	}
	s.startPlayback(r, func(ctx context.Context) error {
		return s.playback.PlaySequence(ctx, seq)
	})
	writeJSON(w, http.StatusAccepted, playResponse{Status: "playing"})
}

type playSegmentRequest struct {
	// Paragraph addresses a story paragraph, or story.WholeStory (-1) for
	// the whole-story track.
	Paragraph int `json:"paragraph"`

	// Word is the span position within the paragraph.
	Word int `json:"word"`

	// Rate is the playback speed multiplier. Defaults to 1.
	Rate float64 `json:"rate"`
}

// handlePlaySegment handles POST /api/play/segment: one word of the current
// story plays from its aligned window, optionally slowed down.
func (s *Server) handlePlaySegment(w http.ResponseWriter, r *http.Request) {
	req := playSegmentRequest{Rate: 1}
	if !readJSON(w, r, &req) {
		return
	}

	span, ok := s.book.SpanAt(req.Paragraph, req.Word)
	if !ok {
		http.Error(w, "no aligned word at that position", http.StatusNotFound)
		return
	}
	snap, ok := s.snapshot(req.Paragraph)
	if !ok || len(snap.Audio) == 0 {
		http.Error(w, "no audio for that paragraph", http.StatusNotFound)
		return
	}

	s.startPlayback(r, func(ctx context.Context) error {
		return s.playback.PlayBoundedSegment(ctx, req.Word, snap.Audio, span.StartSec, span.EndSec, req.Rate)
	})
	writeJSON(w, http.StatusAccepted, playResponse{Status: "playing"})
}

// handlePlayStop handles POST /api/play/stop.
func (s *Server) handlePlayStop(w http.ResponseWriter, _ *http.Request) {
	s.playback.Stop()
	writeJSON(w, http.StatusOK, playResponse{Status: "stopped"})
}

// snapshot resolves a paragraph index (or story.WholeStory) to its alignment.
func (s *Server) snapshot(paragraph int) (story.StoryAlignment, bool) {
	if paragraph == story.WholeStory {
		return s.book.Whole()
	}
	return s.book.Paragraph(paragraph)
}

// startPlayback runs op in the background. The operation outlives the
// request but keeps its trace context; being superseded by a newer
// operation is a normal outcome.
func (s *Server) startPlayback(r *http.Request, op func(context.Context) error) {
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := op(ctx); err != nil && !errors.Is(err, playback.ErrBusySuperseded) {
			s.log.Debug("playback operation ended early", "error", err)
		}
	}()
}

// ── Practice check ────────────────────────────────────────────────────────────

// practiceRequest carries a recorded reading. Audio is base64 in JSON.
type practiceRequest struct {
	Text   string `json:"text"`
	Audio  []byte `json:"audio"`
	Format string `json:"format"`
}

type practiceWordJSON struct {
	Expected   string  `json:"expected"`
	Heard      string  `json:"heard,omitempty"`
	Verdict    string  `json:"verdict"`
	Similarity float64 `json:"similarity"`
}

type practiceResponse struct {
	Words []practiceWordJSON `json:"words"`
	Score float64            `json:"score"`
}

// handlePractice handles POST /api/practice: transcribe the recording and
// score it word by word against the expected text.
func (s *Server) handlePractice(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		http.Error(w, "no transcription provider configured", http.StatusServiceUnavailable)
		return
	}

	var req practiceRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if len(req.Audio) == 0 {
		http.Error(w, "audio is required", http.StatusBadRequest)
		return
	}

	result, err := s.checker.CheckRecording(r.Context(), req.Text, req.Audio, req.Format)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := practiceResponse{
		Words: make([]practiceWordJSON, len(result.Words)),
		Score: result.Score,
	}
	for i, wr := range result.Words {
		resp.Words[i] = practiceWordJSON{
			Expected:   wr.Expected,
			Heard:      wr.Heard,
			Verdict:    wr.Verdict.String(),
			Similarity: wr.Similarity,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Reading history ───────────────────────────────────────────────────────────

type historyRecordJSON struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	LastReadAt time.Time `json:"last_read_at"`
	ReadCount  int       `json:"read_count"`
}

type historyResponse struct {
	Records []historyRecordJSON `json:"records"`
}

// requireHistory reports whether the history store is available, writing a
// 503 when it is not.
func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.history == nil {
		http.Error(w, "history store unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleHistoryList handles GET /api/history. The optional limit query
// parameter caps the result; the store default applies otherwise.
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := historyResponse{Records: make([]historyRecordJSON, len(records))}
	for i, rec := range records {
		resp.Records[i] = historyView(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistoryAdd handles POST /api/history.
func (s *Server) handleHistoryAdd(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	var req textRequest
	if !readJSON(w, r, &req) {
		return
	}

	rec, err := s.history.Add(r.Context(), req.Text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, historyView(rec))
}

// handleHistoryDelete handles DELETE /api/history/{id}.
func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "id must be an integer", http.StatusBadRequest)
		return
	}

	if err := s.history.Delete(r.Context(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			http.Error(w, "no history record with that id", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func historyView(rec history.Record) historyRecordJSON {
	return historyRecordJSON{
		ID:         rec.ID,
		Text:       rec.Text,
		CreatedAt:  rec.CreatedAt,
		LastReadAt: rec.LastReadAt,
		ReadCount:  rec.ReadCount,
	}
}
