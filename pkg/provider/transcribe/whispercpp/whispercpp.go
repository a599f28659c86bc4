// Package whispercpp provides a transcription provider backed by a local
// whisper.cpp server. It implements the transcribe.Provider interface.
//
// The whisper-server binary exposes a REST API at POST /inference that
// accepts an audio file as multipart/form-data and returns the transcribed
// text as JSON. One HTTP call per recording; no session state is kept.
// Decodable recordings are re-encoded to 16 kHz mono WAV before upload,
// the input whisper models are trained on; anything else is uploaded
// untouched.
//
// Usage:
//
//	p, err := whispercpp.New("http://localhost:8080",
//	    whispercpp.WithLanguage("en"),
//	)
//	text, err := p.Transcribe(ctx, wavBytes, "wav")
package whispercpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/pkg/audio"
	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/transcribe"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	inferenceEndpoint = "/inference"

	// whisperSampleRate is the input rate whisper models are trained on.
	whisperSampleRate = 16000
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with. Empty is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server (e.g.,
// "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements transcribe.Provider backed by a whisper.cpp HTTP
// server. Safe for concurrent use; each Transcribe call is an independent
// request.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whispercpp: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "whispercpp" }

// Transcribe implements transcribe.Provider. It POSTs the recording to the
// /inference endpoint as multipart/form-data and returns the transcribed
// text with surrounding whitespace trimmed.
func (p *Provider) Transcribe(ctx context.Context, recording []byte, format string) (string, error) {
	if len(recording) == 0 {
		return "", errors.New("whispercpp: audio must not be empty")
	}
	recording, format = normalize(recording, format)
	if format == "" {
		format = "wav"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio."+format)
	if err != nil {
		return "", fmt.Errorf("whispercpp: create form file: %w", err)
	}
	if _, err := fw.Write(recording); err != nil {
		return "", fmt.Errorf("whispercpp: write audio data: %w", err)
	}

	if p.language != "" {
		if err := mw.WriteField("language", p.language); err != nil {
			return "", fmt.Errorf("whispercpp: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("whispercpp: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whispercpp: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+inferenceEndpoint, &body)
	if err != nil {
		return "", fmt.Errorf("whispercpp: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whispercpp: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whispercpp: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whispercpp: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whispercpp: parse JSON response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// normalize re-encodes a decodable recording as 16 kHz mono WAV. Recordings
// in containers this package cannot decode pass through unchanged and the
// server is left to cope.
func normalize(recording []byte, format string) ([]byte, string) {
	pcm, err := audio.DecodeToPCM(recording)
	if err != nil {
		return recording, format
	}
	pcm = audio.Resample(audio.ToMono(pcm), whisperSampleRate)
	return audio.EncodeWAV(pcm.Data, pcm.SampleRate, pcm.Channels), "wav"
}
