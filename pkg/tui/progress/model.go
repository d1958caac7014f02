// Package progress shows a live progress view while a covering array is
// generated.
package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/ipo2"
)

// ErrInterrupted is returned when the user quits the view before generation ends.
var ErrInterrupted = errors.New("generation interrupted")

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)

	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // Green
)

type updateMsg ipo2.Progress

type doneMsg struct {
	result *generator.CoveringArray
	err    error
}

// Model is the bubbletea model of the progress view.
type Model struct {
	title       string
	bar         progress.Model
	spinner     spinner.Model
	last        ipo2.Progress
	seen        bool
	done        bool
	interrupted bool
	result      *generator.CoveringArray
	err         error
}

// NewModel creates the view.
func NewModel(title string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		title:   title,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner: s,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.interrupted = true
			return m, tea.Quit
		}

	case updateMsg:
		m.last = ipo2.Progress(msg)
		m.seen = true
		return m, nil

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Percent returns the share of factors processed so far.
func (m Model) Percent() float64 {
	if m.last.Total == 0 {
		return 0
	}
	return float64(m.last.Index) / float64(m.last.Total)
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", m.title)))
	s.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n")
		return s.String()
	case m.done:
		s.WriteString(doneStyle.Render(fmt.Sprintf("✓ %d test cases", len(m.result.TestCases))))
		s.WriteString("\n")
		return s.String()
	}

	if !m.seen {
		s.WriteString(m.spinner.View() + " building the initial rows...\n")
	} else {
		s.WriteString(m.bar.ViewAs(m.Percent()))
		s.WriteString("\n\n")
		fmt.Fprintf(&s, "%s factor %d/%d '%s'  rows %d  targets %d  leftover %d\n",
			m.spinner.View(), m.last.Index, m.last.Total, m.last.Factor,
			m.last.Rows, m.last.Targets, m.last.Leftover)
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("ctrl+c to cancel"))
	s.WriteString("\n")
	return s.String()
}

// GenerateFunc runs a generation, reporting progress through report.
type GenerateFunc func(ctx context.Context, report func(ipo2.Progress)) (*generator.CoveringArray, error)

// Run executes generate in the background while the view is shown. Quitting
// the view cancels generation and returns ErrInterrupted.
func Run(ctx context.Context, title string, generate GenerateFunc, opts ...tea.ProgramOption) (*generator.CoveringArray, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(title), opts...)
	go func() {
		ca, err := generate(ctx, func(pr ipo2.Progress) { p.Send(updateMsg(pr)) })
		p.Send(doneMsg{result: ca, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress view failed: %w", err)
	}

	m := final.(Model)
	if m.interrupted && !m.done {
		return nil, ErrInterrupted
	}
	return m.result, m.err
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
