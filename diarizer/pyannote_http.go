package diarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"murmur/audio"
	"murmur/encoder"
	"murmur/internal/traced"
)

const defaultPyannoteURL = "http://127.0.0.1:8001/diarize"

func init() {
	Register("pyannote-http", func(o Options) (Engine, error) {
		if o.URL == "" {
			o.URL = defaultPyannoteURL
		}
		if o.APIKey == "" {
			o.APIKey = os.Getenv("HUGGINGFACE_TOKEN")
		}
		return NewPyannote(o), nil
	})
}

// Pyannote posts each window as WAV to a pyannote diarization service.
type Pyannote struct {
	client      *traced.Client
	url         string
	token       string
	numSpeakers int

	LastMetrics *traced.NetworkMetrics
}

func NewPyannote(o Options) *Pyannote {
	return &Pyannote{
		client:      traced.NewClient(),
		url:         o.URL,
		token:       o.APIKey,
		numSpeakers: o.NumSpeakers,
	}
}

func (p *Pyannote) Name() string { return "pyannote-http" }

func (p *Pyannote) Warm() time.Duration { return p.client.Warm(p.url) }

func (p *Pyannote) NetworkStats() string {
	if p.LastMetrics == nil {
		return ""
	}
	return p.LastMetrics.String()
}

// HasToken reports whether a Hugging Face token will be forwarded.
func (p *Pyannote) HasToken() bool { return p.token != "" }

type pyannoteResponse struct {
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
	Error string `json:"error"`
}

func (p *Pyannote) Diarize(ctx context.Context, samples []float32, sampleRate int) ([]Turn, error) {
	wav, err := encoder.Encode(encoder.NewWav(sampleRate), audio.Float32ToInt16(samples))
	if err != nil {
		return nil, fmt.Errorf("encoding window: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "window.wav")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(wav.Data); err != nil {
		return nil, err
	}
	if p.numSpeakers > 0 {
		writer.WriteField("num_speakers", strconv.Itoa(p.numSpeakers))
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, &body)
	if err != nil {
		return nil, err
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pyannote request: %w", err)
	}
	p.LastMetrics = resp.Metrics
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pyannote error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var pr pyannoteResponse
	if err := json.Unmarshal(resp.Body, &pr); err != nil {
		return nil, fmt.Errorf("pyannote response parse error: %w", err)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("pyannote: %s", pr.Error)
	}

	turns := make([]Turn, 0, len(pr.Segments))
	for _, s := range pr.Segments {
		turns = append(turns, Turn{Start: s.Start, End: s.End, Speaker: s.Speaker})
	}
	return turns, nil
}
