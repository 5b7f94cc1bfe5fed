package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{"fake", "groq", "openai", "whisper-http"} {
		found := false
		for _, n := range Names() {
			if n == name {
				found = true
			}
		}
		if !found {
			t.Errorf("engine %q not registered (have %v)", name, Names())
		}
	}

	if _, err := New("nope", Options{}); err == nil {
		t.Error("expected error for unknown engine")
	}

	t.Setenv("GROQ_API_KEY", "")
	if _, err := New("groq", Options{}); err == nil || !strings.Contains(err.Error(), "GROQ_API_KEY") {
		t.Errorf("groq without key: err = %v", err)
	}

	t.Setenv("GROQ_API_KEY", "k")
	e, err := New("groq", Options{})
	if err != nil {
		t.Fatalf("groq with env key: %v", err)
	}
	if e.Name() != "groq" {
		t.Errorf("Name() = %q", e.Name())
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Register("fake", nil)
}

func TestHTTPTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if r.FormValue("response_format") != "verbose_json" {
			t.Errorf("response_format = %q", r.FormValue("response_format"))
		}
		if r.FormValue("language") != "en" || r.FormValue("model") != "tiny" {
			t.Errorf("language/model = %q/%q", r.FormValue("language"), r.FormValue("model"))
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "audio.flac" || string(data[:4]) != "fLaC" {
			t.Errorf("file %q starts with %q", hdr.Filename, data[:4])
		}
		w.Header().Set("x-ratelimit-remaining-requests", "9")
		w.Header().Set("x-ratelimit-limit-requests", "10")
		io.WriteString(w, `{"text":"hi there","segments":[
			{"start":0.0,"end":1.5,"text":" hi"},
			{"start":1.5,"end":2.0,"text":" there","no_speech_prob":0.1}]}`)
	}))
	defer srv.Close()

	e := NewHTTP("test", Options{URL: srv.URL, APIKey: "secret", Model: "tiny", Language: "en"})
	segs, err := e.Transcribe(context.Background(), make([]float32, 16000), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[1].Start != 1.5 || segs[1].End != 2.0 || segs[1].Text != " there" || segs[1].NoSpeechProb != 0.1 {
		t.Errorf("segment 1 = %+v", segs[1])
	}
	if e.RateLimit != "9/10" {
		t.Errorf("RateLimit = %q", e.RateLimit)
	}
	if e.LastMetrics == nil {
		t.Error("LastMetrics not recorded")
	}
}

func TestHTTPTextOnlyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"text":"hello"}`)
	}))
	defer srv.Close()

	e := NewHTTP("test", Options{URL: srv.URL, Format: "wav"})
	segs, err := e.Transcribe(context.Background(), make([]float32, 8000), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0].End != 0.5 || segs[0].Text != "hello" {
		t.Errorf("segs = %+v", segs)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTP("test", Options{URL: srv.URL})
	_, err := e.Transcribe(context.Background(), make([]float32, 160), 16000)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("err = %v, want 503 error", err)
	}
}

func TestHTTPCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewHTTP("test", Options{URL: "http://127.0.0.1:1"})
	if _, err := e.Transcribe(ctx, make([]float32, 160), 16000); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFake(t *testing.T) {
	boom := errors.New("boom")
	f := NewFake(nil, boom)
	if _, err := f.Transcribe(context.Background(), nil, 16000); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
	if f.Calls() != 1 {
		t.Errorf("Calls() = %d", f.Calls())
	}
}

func TestLevelFake(t *testing.T) {
	e := NewLevelFake(0.1)
	silent := make([]float32, 16000)
	if segs, _ := e.Transcribe(context.Background(), silent, 16000); len(segs) != 0 {
		t.Errorf("silence produced %v", segs)
	}
	loud := make([]float32, 16000)
	for i := range loud {
		loud[i] = 0.5
	}
	segs, _ := e.Transcribe(context.Background(), loud, 16000)
	if len(segs) != 1 || segs[0].End != 1 {
		t.Errorf("loud produced %+v", segs)
	}
}
