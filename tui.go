package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"murmur/align"
	"murmur/log"
	"murmur/pipeline"
	"murmur/sink"
)

// TUI message types
type LinesMsg struct{ Lines []align.Line }
type StatusMsg struct{ Status pipeline.Status }
type ModeLineMsg struct{ Text string }   // engines and window length
type DeviceLineMsg struct{ Text string } // microphone device name
type SilenceMsg struct{ Silent bool }
type tickMsg time.Time

const maxTUILines = 500

type tuiModel struct {
	frame         int
	width, height int
	status        pipeline.Status
	audioLevel    float64
	modeLine      string
	deviceLine    string
	lines         []align.Line
	windows       int // windows that produced at least one line
	silent        bool
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case StatusMsg:
		m.status = msg.Status
		m.audioLevel = m.audioLevel*0.6 + msg.Status.Level*0.4

	case LinesMsg:
		m.windows++
		m.lines = append(m.lines, msg.Lines...)
		if over := len(m.lines) - maxTUILines; over > 0 {
			m.lines = m.lines[over:]
		}

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case SilenceMsg:
		m.silent = msg.Silent
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const statusWidth = 34
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var info []string
	if m.status.Running {
		pulse := "●"
		if m.frame/5%2 == 1 {
			pulse = "○"
		}
		info = append(info, lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Render(pulse+" LIVE"))
	} else {
		info = append(info, dim.Render("○ STANDBY"))
	}
	info = append(info, "", renderLevel(m.audioLevel, statusWidth-4))
	if m.silent {
		info = append(info, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("⚠ no signal"))
	}
	info = append(info, "")

	queueStyle := dim
	if m.status.QueueCap > 0 && m.status.QueueLen >= m.status.QueueCap {
		queueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	}
	info = append(info,
		dim.Render(fmt.Sprintf("worker  %s", m.status.WorkerState)),
		queueStyle.Render(fmt.Sprintf("queue   %d/%d", m.status.QueueLen, m.status.QueueCap)),
		dim.Render(fmt.Sprintf("windows %d ok, %d failed", m.status.Processed, m.status.Failed)),
		"",
	)
	if m.modeLine != "" {
		info = append(info, lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(m.modeLine))
	}
	if m.deviceLine != "" {
		info = append(info, dim.Render(m.deviceLine))
	}
	info = append(info, "")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := helpStyle.Bold(true)
	info = append(info, boldStyle.Render("Ctrl+C")+helpStyle.Render(" to stop"))
	info = append(info, helpStyle.Render("murmur "+version))

	statusPanel := lipgloss.NewStyle().
		Width(statusWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(strings.Join(info, "\n"))

	logWidth := max(m.width-statusWidth-1, 20)
	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(m.renderTranscript(logWidth-2, m.height))

	return lipgloss.JoinHorizontal(lipgloss.Top, statusPanel, logPanel)
}

// renderTranscript shows the newest lines that fit in height rows.
func (m tuiModel) renderTranscript(width, height int) string {
	if len(m.lines) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Waiting for speech...")
	}
	width = max(width, 10)
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	var rows []string
	for i := len(m.lines) - 1; i >= 0 && len(rows) < height; i-- {
		l := m.lines[i]
		tagStyle := lipgloss.NewStyle().Bold(true).Foreground(sink.SpeakerColor(l.Speaker))
		if l.Speaker == align.Unknown {
			tagStyle = lipgloss.NewStyle().Faint(true)
		}
		header := tagStyle.Render(l.Speaker) + " " + timeStyle.Render(fmt.Sprintf("%.2fs -> %.2fs", l.Start, l.End))
		block := []string{header}
		for _, w := range wrapText(l.Text, width) {
			block = append(block, textStyle.Render(w))
		}
		block = append(block, "")
		rows = append(block, rows...)
	}
	if len(rows) > height {
		rows = rows[len(rows)-height:]
	}
	return strings.Join(rows, "\n")
}

func renderLevel(level float64, width int) string {
	// speech RMS rarely exceeds 0.3; scale so normal talking fills most of the bar
	filled := int(math.Min(1, math.Sqrt(level/0.3)) * float64(width))
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render(strings.Repeat("█", filled))
	rest := lipgloss.NewStyle().Foreground(lipgloss.Color("236")).Render(strings.Repeat("░", width-filled))
	return bar + rest
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiView runs the bubbletea program and doubles as the pipeline sink.
type tuiView struct {
	program *tea.Program
	started chan struct{}
	done    chan struct{}
}

func newTUIView() *tuiView {
	return &tuiView{
		program: tea.NewProgram(tuiModel{}, tea.WithAltScreen()),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (v *tuiView) Emit(lines []align.Line) {
	v.program.Send(LinesMsg{Lines: lines})
}

func (v *tuiView) silence(ev SilenceEvent) {
	switch ev {
	case SilenceWarn:
		v.program.Send(SilenceMsg{Silent: true})
	case SilenceWarnClear:
		v.program.Send(SilenceMsg{Silent: false})
	}
}

// run blocks until the program exits, then cancels the session. Status is
// polled from c while the program is up.
func (v *tuiView) run(ctx context.Context, cancel context.CancelFunc, c *pipeline.Controller, modeLine, deviceLine string) {
	defer close(v.done)
	defer cancel()

	go func() {
		v.program.Send(ModeLineMsg{Text: modeLine})
		v.program.Send(DeviceLineMsg{Text: deviceLine})
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-v.done:
				return
			case <-ticker.C:
				v.program.Send(StatusMsg{Status: c.Status()})
			}
		}
	}()

	close(v.started)
	if _, err := v.program.Run(); err != nil && ctx.Err() == nil {
		log.Errorf("TUI error: %v", err)
	}
}

// quit stops the program and waits for the terminal to be restored.
func (v *tuiView) quit() {
	select {
	case <-v.started:
		v.program.Quit()
		<-v.done
	default:
		v.program.Kill()
	}
}
