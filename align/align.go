// Package align attributes transcribed segments to diarized speakers.
package align

import (
	"fmt"
	"strings"

	"murmur/audio"
	"murmur/diarizer"
	"murmur/transcriber"
)

const Unknown = "UNKNOWN"

// Line is a transcript line with times measured from the start of the stream.
type Line struct {
	Start   float64
	End     float64
	Speaker string
	Text    string
}

func (l Line) String() string {
	return fmt.Sprintf("[%s] (%.2fs -> %.2fs): %s", l.Speaker, l.Start, l.End, l.Text)
}

// Overlap is the length of the intersection of [aStart, aEnd) and [bStart, bEnd).
func Overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	return max(0, min(aEnd, bEnd)-max(aStart, bStart))
}

// Speaker picks the turn overlapping [start, end) the most. Ties go to the
// earliest turn in the slice. With no overlapping turn it returns Unknown.
func Speaker(start, end float64, turns []diarizer.Turn) string {
	best := Unknown
	bestOverlap := 0.0
	for _, t := range turns {
		if o := Overlap(start, end, t.Start, t.End); o > bestOverlap {
			best, bestOverlap = t.Speaker, o
		}
	}
	return best
}

// Align labels every non-blank segment of win with a speaker and shifts it
// to stream time. Segment order is preserved.
func Align(win audio.Window, segments []transcriber.Segment, turns []diarizer.Turn) []Line {
	offset := win.Start()
	var lines []Line
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Start:   offset + seg.Start,
			End:     offset + seg.End,
			Speaker: Speaker(seg.Start, seg.End, turns),
			Text:    text,
		})
	}
	return lines
}
