package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"murmur/audio"
	"murmur/encoder"
	"murmur/internal/traced"
)

const (
	openAIURL = "https://api.openai.com/v1/audio/transcriptions"
	groqURL   = "https://api.groq.com/openai/v1/audio/transcriptions"
	localURL  = "http://127.0.0.1:8000/v1/audio/transcriptions"
)

func init() {
	Register("openai", func(o Options) (Engine, error) {
		return newKeyed("openai", openAIURL, "whisper-1", "OPENAI_API_KEY", o)
	})
	Register("groq", func(o Options) (Engine, error) {
		return newKeyed("groq", groqURL, "whisper-large-v3-turbo", "GROQ_API_KEY", o)
	})
	Register("whisper-http", func(o Options) (Engine, error) {
		if o.URL == "" {
			o.URL = localURL
		}
		if o.Model == "" {
			o.Model = "base"
		}
		return NewHTTP("whisper-http", o), nil
	})
}

func newKeyed(name, url, model, keyEnv string, o Options) (Engine, error) {
	if o.APIKey == "" {
		o.APIKey = os.Getenv(keyEnv)
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("%s: set %s", name, keyEnv)
	}
	if o.URL == "" {
		o.URL = url
	}
	if o.Model == "" {
		o.Model = model
	}
	return NewHTTP(name, o), nil
}

// HTTP posts each window to an OpenAI-compatible transcription endpoint
// and reads the verbose_json segment list.
type HTTP struct {
	name   string
	client *traced.Client
	apiURL string
	apiKey string
	model  string
	lang   string
	format string

	// LastMetrics holds network timings of the most recent request.
	LastMetrics *traced.NetworkMetrics
	RateLimit   string
}

func NewHTTP(name string, o Options) *HTTP {
	format := o.Format
	if format == "" {
		format = "flac"
	}
	return &HTTP{
		name:   name,
		client: traced.NewClient(),
		apiURL: o.URL,
		apiKey: o.APIKey,
		model:  o.Model,
		lang:   o.Language,
		format: format,
	}
}

func (h *HTTP) Name() string { return h.name }

// Warm pre-opens the connection to the endpoint.
func (h *HTTP) Warm() time.Duration { return h.client.Warm(h.apiURL) }

// NetworkStats summarizes the most recent request, or "" before the first.
func (h *HTTP) NetworkStats() string {
	if h.LastMetrics == nil {
		return ""
	}
	return h.LastMetrics.String() + " ratelimit=" + h.RateLimit
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func (h *HTTP) Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]Segment, error) {
	enc, err := encoder.New(h.format, sampleRate)
	if err != nil {
		return nil, err
	}
	audioData, err := encoder.Encode(enc, audio.Float32ToInt16(samples))
	if err != nil {
		return nil, fmt.Errorf("encoding window: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+audioData.Format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData.Data); err != nil {
		return nil, err
	}

	if h.model != "" {
		writer.WriteField("model", h.model)
	}
	writer.WriteField("response_format", "verbose_json")
	if h.lang != "" {
		writer.WriteField("language", h.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.apiURL, &body)
	if err != nil {
		return nil, err
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", h.name, err)
	}
	h.LastMetrics = resp.Metrics
	h.RateLimit = traced.FirstNonEmpty(resp.Header, "x-ratelimit-remaining-requests") + "/" +
		traced.FirstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s API error %d: %s", h.name, resp.StatusCode, string(resp.Body))
	}

	var vResp verboseResponse
	if err := json.Unmarshal(resp.Body, &vResp); err != nil {
		return nil, fmt.Errorf("%s response parse error: %w", h.name, err)
	}

	// Some servers omit segments for short clips and only return text.
	if len(vResp.Segments) == 0 && vResp.Text != "" {
		end := vResp.Duration
		if end == 0 {
			end = float64(len(samples)) / float64(sampleRate)
		}
		return []Segment{{Start: 0, End: end, Text: vResp.Text}}, nil
	}

	segments := make([]Segment, 0, len(vResp.Segments))
	for _, seg := range vResp.Segments {
		segments = append(segments, Segment{
			Start:        seg.Start,
			End:          seg.End,
			Text:         seg.Text,
			NoSpeechProb: seg.NoSpeechProb,
			AvgLogProb:   seg.AvgLogProb,
		})
	}
	return segments, nil
}
