package diarizer

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
	for _, name := range []string{"fake", "none", "pyannote-http"} {
		e, err := New(name, Options{})
		if err != nil {
			t.Errorf("New(%q): %v", name, err)
			continue
		}
		if e.Name() != name {
			t.Errorf("New(%q).Name() = %q", name, e.Name())
		}
	}
	if _, err := New("missing", Options{}); err == nil || !strings.Contains(err.Error(), "pyannote-http") {
		t.Errorf("err = %v, want list of available engines", err)
	}
}

func TestPyannoteTokenFromEnv(t *testing.T) {
	t.Setenv("HUGGINGFACE_TOKEN", "hf_x")
	e, err := New("pyannote-http", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !e.(*Pyannote).HasToken() {
		t.Error("token not picked up from HUGGINGFACE_TOKEN")
	}
}

func TestPyannoteDiarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if r.FormValue("num_speakers") != "2" {
			t.Errorf("num_speakers = %q", r.FormValue("num_speakers"))
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data[:4]) != "RIFF" || len(data) != 44+2*8000 {
			t.Errorf("unexpected upload: %d bytes, magic %q", len(data), data[:4])
		}
		io.WriteString(w, `{"segments":[{"start":0,"end":2.5,"speaker":"SPEAKER_00"},{"start":2.0,"end":5,"speaker":"SPEAKER_01"}]}`)
	}))
	defer srv.Close()

	p := NewPyannote(Options{URL: srv.URL, APIKey: "tok", NumSpeakers: 2})
	turns, err := p.Diarize(context.Background(), make([]float32, 8000), 16000)
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	want := []Turn{{0, 2.5, "SPEAKER_00"}, {2.0, 5, "SPEAKER_01"}}
	if len(turns) != len(want) {
		t.Fatalf("turns = %+v", turns)
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, turns[i], want[i])
		}
	}
}

func TestPyannoteErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"status", http.StatusInternalServerError, "boom", "500"},
		{"error field", http.StatusOK, `{"error":"model not loaded"}`, "model not loaded"},
		{"bad json", http.StatusOK, `{`, "parse error"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewPyannote(Options{URL: srv.URL}).Diarize(context.Background(), make([]float32, 160), 16000)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestFakes(t *testing.T) {
	boom := errors.New("boom")
	if _, err := NewFake(nil, boom).Diarize(context.Background(), nil, 16000); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	turns, _ := (&Single{Speaker: "S"}).Diarize(context.Background(), make([]float32, 32000), 16000)
	if len(turns) != 1 || turns[0].End != 2 || turns[0].Speaker != "S" {
		t.Errorf("Single turns = %+v", turns)
	}
	if turns, _ := (None{}).Diarize(context.Background(), nil, 0); turns != nil {
		t.Errorf("None turns = %+v", turns)
	}
}
