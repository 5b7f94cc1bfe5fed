package doctor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"murmur/audio"
	"murmur/diarizer"
	"murmur/transcriber"
)

func loud(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16((i%40)-20) * 500
	}
	return s
}

func options(samples []int16, speech transcriber.Engine, diar diarizer.Engine, out *bytes.Buffer) Options {
	return Options{
		Audio:       audio.NewFakeContextPCM(samples, 160, false),
		SampleRate:  16000,
		Speech:      speech,
		Diarization: diar,
		Record:      50 * time.Millisecond,
		Out:         out,
	}
}

func TestRunAllPass(t *testing.T) {
	var out bytes.Buffer
	speech := transcriber.NewFake([]transcriber.Segment{{Start: 0, End: 0.5, Text: " testing one two "}}, nil)
	diar := diarizer.NewFake([]diarizer.Turn{{Start: 0, End: 1, Speaker: "SPEAKER_00"}}, nil)

	if rc := Run(context.Background(), options(loud(16000), speech, diar, &out)); rc != 0 {
		t.Fatalf("exit code = %d, output:\n%s", rc, out.String())
	}
	for _, want := range []string{
		"PASS: audio captured",
		"testing one two",
		"1 turns, 1 speakers",
		"[SPEAKER_00] (0.00s -> 0.50s): testing one two",
		"All checks passed!",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunEngineFailure(t *testing.T) {
	var out bytes.Buffer
	speech := transcriber.NewFake(nil, errors.New("401 unauthorized"))
	if rc := Run(context.Background(), options(loud(1600), speech, diarizer.None{}, &out)); rc != 1 {
		t.Fatalf("exit code = %d, want 1", rc)
	}
	if !strings.Contains(out.String(), "FAIL: fake transcriber error: 401 unauthorized") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestRunNoAudio(t *testing.T) {
	var out bytes.Buffer
	speech := transcriber.NewFake(nil, nil)
	if rc := Run(context.Background(), options(nil, speech, diarizer.None{}, &out)); rc != 1 {
		t.Fatalf("exit code = %d, want 1", rc)
	}
	if !strings.Contains(out.String(), "no audio captured") {
		t.Errorf("output:\n%s", out.String())
	}
	if speech.Calls() != 0 {
		t.Error("speech engine called without audio")
	}
}

func TestRunWarnsAboutMissingToken(t *testing.T) {
	var out bytes.Buffer
	diar := diarizer.NewPyannote(diarizer.Options{URL: "http://127.0.0.1:1"})
	Run(context.Background(), options(loud(1600), transcriber.NewFake(nil, nil), diar, &out))
	if !strings.Contains(out.String(), "HUGGINGFACE_TOKEN is not set") {
		t.Errorf("output:\n%s", out.String())
	}
}
