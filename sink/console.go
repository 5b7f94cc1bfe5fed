package sink

import (
	"fmt"
	"hash/fnv"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"murmur/align"
)

var speakerPalette = []lipgloss.Color{"39", "208", "112", "170", "220", "45", "203", "141"}

// Console prints lines as "[speaker] (start -> end): text". With color
// enabled the speaker tag is tinted per speaker.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
	color    bool
	styles   map[string]lipgloss.Style
	unknown  lipgloss.Style
}

func NewConsole(w io.Writer, color bool) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:        w,
		renderer: r,
		color:    color,
		styles:   map[string]lipgloss.Style{},
		unknown:  r.NewStyle().Faint(true),
	}
}

// SpeakerColor maps a speaker label to a stable palette colour.
func SpeakerColor(speaker string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(speaker))
	return speakerPalette[h.Sum32()%uint32(len(speakerPalette))]
}

func (c *Console) style(speaker string) lipgloss.Style {
	if speaker == align.Unknown {
		return c.unknown
	}
	if s, ok := c.styles[speaker]; ok {
		return s
	}
	s := c.renderer.NewStyle().Bold(true).Foreground(SpeakerColor(speaker))
	c.styles[speaker] = s
	return s
}

func (c *Console) Emit(lines []align.Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range lines {
		if !c.color {
			fmt.Fprintln(c.w, l.String())
			continue
		}
		tag := c.style(l.Speaker).Render("[" + l.Speaker + "]")
		fmt.Fprintf(c.w, "%s (%.2fs -> %.2fs): %s\n", tag, l.Start, l.End, l.Text)
	}
}
