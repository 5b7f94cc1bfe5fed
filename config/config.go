package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"murmur/diarizer"
	"murmur/pipeline"
	"murmur/transcriber"
)

type Config struct {
	WindowSeconds        float64 `yaml:"window_seconds"`
	SampleRate           int     `yaml:"sample_rate"`
	QueueCapacity        int     `yaml:"queue_capacity"`
	ShutdownGraceSeconds float64 `yaml:"shutdown_grace_seconds"` // 0 means window + 2
	Device               string  `yaml:"device"`
	Gain                 float64 `yaml:"gain"`

	Speech      SpeechConfig      `yaml:"speech"`
	Diarization DiarizationConfig `yaml:"diarization"`
	Log         LogConfig         `yaml:"log"`
	Output      OutputConfig      `yaml:"output"`

	MetricsFile string `yaml:"metrics_file"`
}

type SpeechConfig struct {
	Engine   string `yaml:"engine"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Format   string `yaml:"format"`
}

type DiarizationConfig struct {
	Engine      string `yaml:"engine"`
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	NumSpeakers int    `yaml:"num_speakers"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

type OutputConfig struct {
	Color bool `yaml:"color"`
	TUI   bool `yaml:"tui"`
}

func Default() Config {
	return Config{
		WindowSeconds: 5,
		SampleRate:    16000,
		QueueCapacity: 4,
		Gain:          1,
		Speech: SpeechConfig{
			Engine: "whisper-http",
			Format: "flac",
		},
		Diarization: DiarizationConfig{
			Engine: "pyannote-http",
		},
		Log:    LogConfig{Level: "info"},
		Output: OutputConfig{Color: true},
	}
}

// Load overlays the YAML file at path on the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.WindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("window_seconds must be greater than 0, got %v", c.WindowSeconds))
	} else if c.SampleRate > 0 && c.Pipeline().WindowSize() < 1 {
		errs = append(errs, fmt.Errorf("window_seconds %v holds no samples at %d Hz", c.WindowSeconds, c.SampleRate))
	}
	if c.SampleRate < 1000 {
		errs = append(errs, fmt.Errorf("sample_rate must be at least 1000, got %d", c.SampleRate))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity))
	}
	if c.ShutdownGraceSeconds < 0 {
		errs = append(errs, fmt.Errorf("shutdown_grace_seconds cannot be negative"))
	}
	if c.Gain < 0 {
		errs = append(errs, fmt.Errorf("gain cannot be negative"))
	}
	if c.Speech.Engine == "" {
		errs = append(errs, errors.New("speech.engine cannot be empty"))
	}
	if c.Diarization.Engine == "" {
		errs = append(errs, errors.New("diarization.engine cannot be empty"))
	}
	if c.Speech.Format != "" && c.Speech.Format != "flac" && c.Speech.Format != "wav" {
		errs = append(errs, fmt.Errorf("speech.format must be flac or wav, got %q", c.Speech.Format))
	}
	if c.Diarization.NumSpeakers < 0 {
		errs = append(errs, errors.New("diarization.num_speakers cannot be negative"))
	}
	return errors.Join(errs...)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		WindowDuration: seconds(c.WindowSeconds),
		SampleRate:     c.SampleRate,
		QueueCapacity:  c.QueueCapacity,
		ShutdownGrace:  seconds(c.ShutdownGraceSeconds),
		Gain:           c.Gain,
	}
}

func (c Config) SpeechOptions() transcriber.Options {
	return transcriber.Options{
		URL:      c.Speech.URL,
		APIKey:   c.Speech.APIKey,
		Model:    c.Speech.Model,
		Language: c.Speech.Language,
		Format:   c.Speech.Format,
	}
}

func (c Config) DiarizationOptions() diarizer.Options {
	return diarizer.Options{
		URL:         c.Diarization.URL,
		APIKey:      c.Diarization.APIKey,
		NumSpeakers: c.Diarization.NumSpeakers,
	}
}
