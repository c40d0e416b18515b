// Package tui renders batch conversion progress as an interactive terminal
// UI: a progress bar, a scrolling tail of per-file results, and a final
// summary. The batch runner executes in its own goroutine and feeds the
// program through typed messages.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pdfnight/pdfnight/batch"
)

const logTail = 10

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	barDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	barRestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noteStyle    = lipgloss.NewStyle().Faint(true)
)

// FileDoneMsg reports one processed file.
type FileDoneMsg struct{ Event batch.Event }

// RunDoneMsg reports the end of the whole run.
type RunDoneMsg struct {
	Summary batch.Summary
	Err     error
}

// Model is the Bubble Tea model for a batch run.
type Model struct {
	root   string
	theme  string
	dryRun bool
	cancel context.CancelFunc

	width     int
	processed int
	total     int
	lines     []string

	done    bool
	summary batch.Summary
	err     error
}

// NewModel builds the model. cancel stops the batch run when the user
// quits early; total may be zero when unknown.
func NewModel(root, theme string, total int, dryRun bool, cancel context.CancelFunc) Model {
	return Model{
		root:   root,
		theme:  theme,
		total:  total,
		dryRun: dryRun,
		cancel: cancel,
		width:  80,
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case FileDoneMsg:
		m.processed++
		m.lines = append(m.lines, m.formatEvent(msg.Event))
		if len(m.lines) > logTail {
			m.lines = m.lines[len(m.lines)-logTail:]
		}

	case RunDoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	title := fmt.Sprintf("pdfnight — %s (theme: %s)", m.root, m.theme)
	if m.dryRun {
		title += " [dry run]"
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	b.WriteString(m.progressBar() + "\n\n")
	for _, line := range m.lines {
		b.WriteString(line + "\n")
	}

	if m.done {
		b.WriteString("\n" + m.summaryLine() + "\n")
	} else {
		b.WriteString("\n" + noteStyle.Render("press q to cancel") + "\n")
	}
	return b.String()
}

func (m Model) progressBar() string {
	width := m.width - 20
	if width < 10 {
		width = 10
	}
	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.processed) / float64(m.total)
	}
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	bar := barDoneStyle.Render(strings.Repeat("█", filled)) +
		barRestStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d", bar, m.processed, m.total)
}

func (m Model) formatEvent(ev batch.Event) string {
	name, err := filepath.Rel(m.root, ev.Job.Source)
	if err != nil {
		name = ev.Job.Source
	}
	switch ev.Kind {
	case batch.EventConverted:
		line := okStyle.Render("✓") + " " + name
		if ev.Warnings > 0 {
			line += noteStyle.Render(fmt.Sprintf(" (%d page(s) skipped)", ev.Warnings))
		}
		return line
	case batch.EventPlanned:
		return noteStyle.Render("→") + " " + name
	case batch.EventSkipped:
		return skipStyle.Render("- " + name + " (up to date)")
	case batch.EventFailed:
		return failStyle.Render("✗ "+name) + " " + noteStyle.Render(ev.Err.Error())
	default:
		return name
	}
}

func (m Model) summaryLine() string {
	s := m.summary
	verb := "converted"
	if m.dryRun {
		verb = "would convert"
	}
	line := fmt.Sprintf("%s %d, skipped %d, failed %d (of %d)",
		verb, s.Converted, s.Skipped, s.Failed, s.Total)
	if m.err != nil {
		return failStyle.Render("run aborted: "+m.err.Error()) + "\n" + line
	}
	if s.Failed > 0 {
		return failStyle.Render(line)
	}
	return okStyle.Render(line)
}

// Run drives a full batch conversion under the TUI and blocks until it
// finishes or the user quits.
func Run(ctx context.Context, root string, opts batch.Options) (batch.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs, err := batch.Plan(root)
	if err != nil {
		return batch.Summary{}, err
	}

	p := tea.NewProgram(NewModel(root, opts.Theme, len(jobs), opts.DryRun, cancel))

	done := make(chan RunDoneMsg, 1)
	go func() {
		summary, runErr := batch.Run(ctx, root, opts, func(ev batch.Event) {
			p.Send(FileDoneMsg{Event: ev})
		})
		msg := RunDoneMsg{Summary: summary, Err: runErr}
		done <- msg
		p.Send(msg)
	}()

	_, uiErr := p.Run()
	cancel() // stops the batch when the user quit early
	res := <-done
	if uiErr != nil {
		return res.Summary, fmt.Errorf("terminal ui: %w", uiErr)
	}
	return res.Summary, res.Err
}
