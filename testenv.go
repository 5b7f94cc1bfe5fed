package main

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"murmur/audio"
	"murmur/log"
	"murmur/pipeline"
)

// driveTestMode reads replay commands from r once capture is running:
//
//	WAIT_AUDIO_DONE  block until the WAV file has been fully delivered
//	SLEEP <ms>       pause
//	QUIT             stop the session (same path as an interrupt)
//
// End of input also stops the session.
func driveTestMode(ctx context.Context, stop context.CancelFunc, c *pipeline.Controller, r io.Reader) {
	defer stop()

	select {
	case <-c.Ready():
	case <-ctx.Done():
		return
	}
	fake, _ := c.Capture().(*audio.FakeCapture)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
		case cmd == "WAIT_AUDIO_DONE":
			if fake == nil {
				continue
			}
			select {
			case <-fake.AudioDone():
			case <-ctx.Done():
				return
			}
		case cmd == "QUIT":
			log.Info("test_quit")
			return
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
		default:
			log.Warnf("test mode: unknown command %q", cmd)
		}
	}
}
