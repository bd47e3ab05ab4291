// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"pitchscope/internal/display"
	applog "pitchscope/internal/log"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Rows used by everything except the plot: title, label, axis, slider, help
// and the blank lines between them.
const chromeRows = 7

// SurfaceOptions configures a Surface.
type SurfaceOptions struct {
	Gain   display.Control
	Slider display.Slider
	MaxHz  float64 // Top of the drawn frequency range.
	Source string  // Device or file name shown under the plot.
}

// Surface draws committed frames in the terminal and owns the gain slider.
// Commit is called from the render loop; the bubbletea program runs in Run.
type Surface struct {
	display.Staging

	opts    SurfaceOptions
	program *tea.Program
	size    *plotSize
}

var _ display.Surface = (*Surface)(nil)

// plotSize is written by the UI goroutine and read by Commit.
type plotSize struct {
	width, height atomic.Int32
}

// NewSurface prepares the program. ctx bounds both Run and any Commit
// waiting for the program to start.
func NewSurface(ctx context.Context, opts SurfaceOptions) *Surface {
	size := &plotSize{}
	m := newModel(opts, size)
	return &Surface{
		opts:    opts,
		size:    size,
		program: tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)),
	}
}

type frameMsg struct {
	grid  grid
	label string
	title string
}

// Commit downsamples the staged frame to the current plot size and hands it
// to the UI goroutine.
func (s *Surface) Commit() error {
	w, h := int(s.size.width.Load()), int(s.size.height.Load())
	if w < 1 || h < 1 {
		return nil
	}
	f := s.Pending()
	s.program.Send(frameMsg{
		grid:  rasterize(f, w, h, s.opts.MaxHz),
		label: f.Label,
		title: f.Title,
	})
	return nil
}

// Run blocks until the user quits or ctx is cancelled. Cancellation is not
// an error.
func (s *Surface) Run() error {
	_, err := s.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// Quit asks the program to exit.
func (s *Surface) Quit() { s.program.Quit() }

type keyMap struct {
	Down     key.Binding
	Up       key.Binding
	FastDown key.Binding
	FastUp   key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Down:     key.NewBinding(key.WithKeys("left", "h", "-")),
	Up:       key.NewBinding(key.WithKeys("right", "l", "+", "=")),
	FastDown: key.NewBinding(key.WithKeys("shift+left", "H", "pgdown")),
	FastUp:   key.NewBinding(key.WithKeys("shift+right", "L", "pgup")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
}

type model struct {
	opts   SurfaceOptions
	size   *plotSize
	width  int
	height int

	grid  grid
	label string
	title string
}

func newModel(opts SurfaceOptions, size *plotSize) model {
	return model{
		opts:  opts,
		size:  size,
		title: "Spectrogram",
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.size.width.Store(int32(max(msg.Width, 0)))
		m.size.height.Store(int32(max(msg.Height-chromeRows, 0)))

	case frameMsg:
		m.grid = msg.grid
		m.label = msg.label
		m.title = msg.title

	case tea.KeyMsg:
		step := m.opts.Slider.Step
		if step <= 0 {
			step = 1
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Down):
			m.nudge(-step)
		case key.Matches(msg, keys.Up):
			m.nudge(step)
		case key.Matches(msg, keys.FastDown):
			m.nudge(-10 * step)
		case key.Matches(msg, keys.FastUp):
			m.nudge(10 * step)
		}
	}
	return m, nil
}

func (m model) nudge(delta float64) {
	if m.opts.Gain == nil {
		return
	}
	v := m.opts.Gain.Set(m.opts.Gain.Value() + delta)
	applog.Debugf("Gain set to %.0f", v)
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")
	if m.grid.width > 0 {
		sb.WriteString(m.grid.render())
	}
	sb.WriteString("\n")
	sb.WriteString(axisStyle.Render(m.axis()))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render(m.label))
	sb.WriteString("\n\n")
	sb.WriteString(m.slider())
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("←/→: Gain • Shift+←/→: Gain ×10 • q: Quit"))
	return sb.String()
}

func (m model) axis() string {
	left := fmt.Sprintf("0-%.0f Hz", m.opts.MaxHz)
	right := "now"
	if m.opts.Source != "" {
		left += " • " + m.opts.Source
	}
	pad := max(m.grid.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", pad) + right
}

func (m model) slider() string {
	s := m.opts.Slider
	if m.opts.Gain == nil || s.Max <= s.Min {
		return ""
	}
	const barWidth = 30
	v := m.opts.Gain.Value()
	filled := int((v - s.Min) / (s.Max - s.Min) * barWidth)
	filled = max(0, min(barWidth, filled))

	bar := highlightStyle.Render(strings.Repeat("■", filled)) +
		axisStyle.Render(strings.Repeat("·", barWidth-filled))
	return fmt.Sprintf("%s %s %.0f", s.Label, bar, v)
}
