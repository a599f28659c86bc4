package whispercpp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brianfoody/woodpecker-reading-app/pkg/audio"
)

func TestNew_RequiresServerURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New with empty serverURL: expected error")
	}
}

func TestTranscribe(t *testing.T) {
	audio := []byte("riff-wav-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != inferenceEndpoint {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file field", http.StatusBadRequest)
			return
		}
		defer f.Close()
		if hdr.Filename != "audio.wav" {
			t.Errorf("upload filename = %q, want %q", hdr.Filename, "audio.wav")
		}
		got, _ := io.ReadAll(f)
		if string(got) != string(audio) {
			t.Errorf("uploaded audio = %q, want %q", got, audio)
		}
		if lang := r.FormValue("language"); lang != "de" {
			t.Errorf("language field = %q, want %q", lang, "de")
		}
		if model := r.FormValue("model"); model != "base.en" {
			t.Errorf("model field = %q, want %q", model, "base.en")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " The owl hooted twice. "})
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("de"), WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := p.Transcribe(context.Background(), audio, "wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "The owl hooted twice." {
		t.Errorf("Transcribe = %q, want trimmed %q", text, "The owl hooted twice.")
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p, err := New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), nil, "wav"); err == nil {
		t.Error("Transcribe with empty audio: expected error")
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), []byte("x"), "wav"); err == nil {
		t.Error("Transcribe against failing server: expected error")
	}
}

func TestTranscribe_NormalizesDecodableAudio(t *testing.T) {
	// 100 ms of silent stereo PCM at 44.1 kHz; the upload must arrive as
	// 16 kHz mono WAV.
	const srcRate, srcChannels = 44100, 2
	frames := srcRate / 10
	src := audio.EncodeWAV(make([]byte, frames*srcChannels*2), srcRate, srcChannels)

	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer f.Close()
		if hdr.Filename != "audio.wav" {
			t.Errorf("upload filename = %q, want %q", hdr.Filename, "audio.wav")
		}
		uploaded, _ = io.ReadAll(f)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), src, "wav"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	pcm, err := audio.DecodeToPCM(uploaded)
	if err != nil {
		t.Fatalf("DecodeToPCM(uploaded): %v", err)
	}
	if pcm.SampleRate != whisperSampleRate {
		t.Errorf("uploaded sample rate = %d, want %d", pcm.SampleRate, whisperSampleRate)
	}
	if pcm.Channels != 1 {
		t.Errorf("uploaded channels = %d, want 1", pcm.Channels)
	}
	if want := frames * whisperSampleRate / srcRate; pcm.Frames() != want {
		t.Errorf("uploaded frames = %d, want %d", pcm.Frames(), want)
	}
}

func TestTranscribe_DefaultsFormatToWAV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		_, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		if hdr.Filename != "audio.wav" {
			t.Errorf("upload filename = %q, want %q", hdr.Filename, "audio.wav")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), []byte("x"), ""); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestName(t *testing.T) {
	p, err := New("http://localhost:8080")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "whispercpp" {
		t.Errorf("Name() = %q, want %q", p.Name(), "whispercpp")
	}
}
