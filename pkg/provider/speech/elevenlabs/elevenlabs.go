// Package elevenlabs provides an ElevenLabs-backed speech provider. It
// implements the speech.Provider interface.
//
// Single-shot synthesis uses the REST API: POST /v1/text-to-speech/{voice}
// for plain audio and the /with-timestamps variant for audio plus
// per-character timing. Long passages can also be synthesised over the
// streaming-input WebSocket API via SynthesizeStream, which accepts text
// fragments as they become available and emits audio chunks as they are
// generated.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/pkg/provider/speech"
	"github.com/coder/websocket"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"

	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "mp3_44100_128"
	defaultTimeout   = 30 * time.Second

	// maxErrorBody caps how much of an error response body is read for the
	// error message.
	maxErrorBody = 2048
)

// Compile-time assertion that Provider implements speech.Provider.
var _ speech.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128",
// "pcm_16000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL overrides the REST API base URL. Used by tests to point the
// provider at a local server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// Provider implements speech.Provider backed by the ElevenLabs API. The voice
// is fixed at construction; create one Provider per voice.
type Provider struct {
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	baseURL      string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey and voiceID must be non-empty.
func New(apiKey, voiceID string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		voiceID:      voiceID,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements speech.Provider.
func (p *Provider) Name() string { return "elevenlabs" }

// ---- REST message types ----

// synthesisRequest is the JSON body for both synthesis endpoints.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// charAlignment mirrors the alignment object of the with-timestamps
// response: one entry per spoken character across three parallel arrays.
type charAlignment struct {
	Characters                 []string  `json:"characters"`
	CharacterStartTimesSeconds []float64 `json:"character_start_times_seconds"`
	CharacterEndTimesSeconds   []float64 `json:"character_end_times_seconds"`
}

// alignedSynthesisResponse is the JSON response of the with-timestamps
// endpoint. Alignment tracks the input text; NormalizedAlignment tracks the
// text after number and abbreviation expansion.
type alignedSynthesisResponse struct {
	AudioBase64         string         `json:"audio_base64"`
	Alignment           *charAlignment `json:"alignment"`
	NormalizedAlignment *charAlignment `json:"normalized_alignment"`
}

func defaultVoiceSettings() *voiceSettings {
	return &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
}

// ---- synthesis ----

// Synthesize implements speech.Provider. It performs a single REST call and
// returns the encoded audio bytes in the configured output format.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}

	resp, err := p.post(ctx, p.synthesisURL(), text)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("synthesize", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: read body: %w", err)
	}
	return audio, nil
}

// SynthesizeAligned implements speech.Provider. It calls the with-timestamps
// endpoint and decodes the base64 audio plus the character timing arrays.
func (p *Provider) SynthesizeAligned(ctx context.Context, text string) (*speech.AlignedAudio, error) {
	if text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}

	resp, err := p.post(ctx, p.alignedURL(), text)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("synthesize aligned", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize aligned: read body: %w", err)
	}
	return parseAlignedResponse(data)
}

// post sends the synthesis request body to the given endpoint.
func (p *Provider) post(ctx context.Context, url, text string) (*http.Response, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       p.model,
		VoiceSettings: defaultVoiceSettings(),
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	return resp, nil
}

func (p *Provider) synthesisURL() string {
	return fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", p.baseURL, p.voiceID, p.outputFormat)
}

func (p *Provider) alignedURL() string {
	return fmt.Sprintf("%s/v1/text-to-speech/%s/with-timestamps?output_format=%s", p.baseURL, p.voiceID, p.outputFormat)
}

// statusError reads a bounded prefix of the response body so API error
// messages surface in logs.
func statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(snippet) > 0 {
		return fmt.Errorf("elevenlabs: %s: unexpected status %d: %s", op, resp.StatusCode, snippet)
	}
	return fmt.Errorf("elevenlabs: %s: unexpected status %d", op, resp.StatusCode)
}

// parseAlignedResponse decodes a with-timestamps response body into an
// AlignedAudio. The non-normalized alignment is preferred because its
// characters match the caller's text verbatim; the normalized variant is the
// fallback when the API omits the former.
func parseAlignedResponse(data []byte) (*speech.AlignedAudio, error) {
	var resp alignedSynthesisResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("elevenlabs: parse aligned response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: decode audio: %w", err)
	}

	al := resp.Alignment
	if al == nil {
		al = resp.NormalizedAlignment
	}
	if al == nil {
		return nil, errors.New("elevenlabs: aligned response carries no alignment")
	}

	chars := make([]rune, len(al.Characters))
	for i, s := range al.Characters {
		if s == "" {
			chars[i] = ' '
			continue
		}
		chars[i] = []rune(s)[0]
	}

	return &speech.AlignedAudio{
		Audio:    audio,
		Chars:    chars,
		StartSec: al.CharacterStartTimesSeconds,
		EndSec:   al.CharacterEndTimesSeconds,
	}, nil
}

// ---- WebSocket streaming ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// audioResponse is the JSON message received from ElevenLabs over the
// WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio chunk
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// SynthesizeStream opens a WebSocket to ElevenLabs, pipes text fragments
// from the text channel, and returns a channel emitting audio chunks. Useful
// for long passages where waiting on a single REST round trip would stall
// playback.
//
// The returned audio channel is closed when synthesis is complete or ctx is
// cancelled. The caller must drain it.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string) (<-chan []byte, error) {
	wsURL := fmt.Sprintf(wsEndpointFmt, p.voiceID, p.model, p.outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	// ElevenLabs requires a non-empty first text value.
	boi := boiMessage{
		Text:          " ",
		VoiceSettings: defaultVoiceSettings(),
		XiAPIKey:      p.apiKey,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	audioCh := make(chan []byte, 256)

	go func() {
		defer close(audioCh)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_, msg, err := conn.Read(ctx)
				if err != nil {
					return
				}
				var resp audioResponse
				if err := json.Unmarshal(msg, &resp); err != nil {
					continue
				}
				if resp.Audio == "" {
					continue
				}
				chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
				if err != nil {
					continue
				}
				select {
				case audioCh <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}()

		// Voice settings accompany only the first fragment.
		vs := defaultVoiceSettings()
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					// Text channel closed. Send the flush command and wait
					// for the reader to drain remaining audio.
					flushBytes, _ := json.Marshal(textMessage{Text: ""})
					_ = conn.Write(ctx, websocket.MessageText, flushBytes)
					<-readDone
					return
				}
				if fragment == "" {
					continue
				}
				payload := textMessage{Text: fragment, VoiceSettings: vs}
				vs = nil
				msgBytes, _ := json.Marshal(payload)
				if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return audioCh, nil
}
