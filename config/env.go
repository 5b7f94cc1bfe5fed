package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads shell-style KEY=value files into the process environment.
// Variables already set in the environment win. Missing files are skipped;
// a file that fails to parse is reported on stderr and ignored.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", p, err)
		}
	}
}

// LoadDefaultEnv loads MURMUR_ENV, ~/.murmur.env and ./.env, when present.
func LoadDefaultEnv() {
	if p := strings.TrimSpace(os.Getenv("MURMUR_ENV")); p != "" {
		LoadEnv(p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		LoadEnv(filepath.Join(home, ".murmur.env"))
	}
	LoadEnv(".env")
}

// ApplyEnv overrides c with MURMUR_* variables and fills engine keys from
// the provider variables when the config leaves them empty.
func ApplyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = v
		}
	}

	num("MURMUR_WINDOW_SECONDS", &c.WindowSeconds)
	integer("MURMUR_SAMPLE_RATE", &c.SampleRate)
	integer("MURMUR_QUEUE_CAPACITY", &c.QueueCapacity)
	str("MURMUR_DEVICE", &c.Device)
	str("MURMUR_SPEECH_ENGINE", &c.Speech.Engine)
	str("MURMUR_SPEECH_URL", &c.Speech.URL)
	str("MURMUR_LANGUAGE", &c.Speech.Language)
	str("MURMUR_DIARIZATION_ENGINE", &c.Diarization.Engine)
	str("MURMUR_DIARIZATION_URL", &c.Diarization.URL)
	str("MURMUR_LOG_LEVEL", &c.Log.Level)

	if c.Diarization.APIKey == "" {
		str("HUGGINGFACE_TOKEN", &c.Diarization.APIKey)
	}
	if c.Speech.APIKey == "" {
		switch c.Speech.Engine {
		case "openai":
			str("OPENAI_API_KEY", &c.Speech.APIKey)
		case "groq":
			str("GROQ_API_KEY", &c.Speech.APIKey)
		}
	}
}
