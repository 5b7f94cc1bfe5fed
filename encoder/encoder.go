package encoder

import (
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	Format() string // file extension understood by upload endpoints
	ContentType() string
}

// New returns an encoder for format ("flac" or "wav") at the given rate.
func New(format string, sampleRate int) (Encoder, error) {
	switch format {
	case "flac":
		return NewFlac(sampleRate)
	case "wav":
		return NewWav(sampleRate), nil
	default:
		return nil, fmt.Errorf("unknown audio format %q", format)
	}
}

// Result is a finished encoding of one window.
type Result struct {
	Data        []byte
	Format      string
	ContentType string
	Frames      uint64
	EncodeTime  time.Duration
}

// Encode feeds samples through enc in BlockSize blocks and closes it.
func Encode(enc Encoder, samples []int16) (Result, error) {
	start := time.Now()
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return Result{}, err
		}
	}
	if err := enc.Close(); err != nil {
		return Result{}, err
	}
	return Result{
		Data:        enc.Bytes(),
		Format:      enc.Format(),
		ContentType: enc.ContentType(),
		Frames:      enc.TotalFrames(),
		EncodeTime:  time.Since(start),
	}, nil
}
