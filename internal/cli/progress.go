package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/alexweberk/ai-jobfinder/internal/service"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// progressMsg carries one finished link from the scheduler.
type progressMsg service.Progress

// doneMsg ends the display once extraction returns.
type doneMsg struct {
	err error
}

// progressModel is the bubbletea model for extraction progress.
type progressModel struct {
	progress  progress.Model
	theme     Theme
	total     int
	done      int
	succeeded int
	lastLink  string
	cancel    context.CancelFunc
	finished  bool
	quitting  bool
	err       error
}

// newProgressModel creates a new progress model.
func newProgressModel(total int, cancel context.CancelFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		progress: prog,
		theme:    defaultTheme,
		total:    total,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case progressMsg:
		m.done = msg.Done
		m.succeeded = msg.Succeeded
		m.lastLink = msg.Link
		if msg.Total > 0 {
			m.total = msg.Total
		}
		return m, nil

	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.finished || m.quitting {
		return m.finalView()
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}

	status := m.theme.statusStyle().Render("[extracting]")
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d links, %d ok", m.done, m.total, m.succeeded)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	if m.lastLink != "" {
		return fmt.Sprintf("%s %s %s\n%s\n%s\n", status, progressBar, counts, m.lastLink, hint)
	}
	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nCancelled. Finished extractions are not cached.\n")
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Extraction failed: %s\n", m.err))
	}
	return m.theme.completedStyle().Render(fmt.Sprintf("✓ Extracted %d of %d jobs\n", m.succeeded, m.total))
}

// extractFunc runs extraction, reporting each finished link to onProgress.
type extractFunc func(ctx context.Context, onProgress func(service.Progress)) error

// quietLevel is above every level the pipeline logs at.
const quietLevel = slog.LevelError + 4

// muteStderr stops log lines from reaching stderr until the returned func is
// called. The log file is unaffected.
func muteStderr() (restore func()) {
	prev := stderrLevel.Level()
	stderrLevel.Set(quietLevel)
	return func() { stderrLevel.Set(prev) }
}

// runWithProgress runs fn with a progress bar on stderr when it is a
// terminal. Otherwise it runs fn as is and the scheduler's log lines report
// progress. While the bar is drawn, log lines go to the log file only.
func runWithProgress(ctx context.Context, total int, fn extractFunc) error {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn(ctx, nil)
	}

	restore := muteStderr()
	defer restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(total, cancel), tea.WithOutput(os.Stderr), tea.WithContext(ctx))

	uiDone := make(chan error, 1)
	go func() {
		_, err := p.Run()
		uiDone <- err
	}()

	err := fn(ctx, func(pr service.Progress) {
		p.Send(progressMsg(pr))
	})
	p.Send(doneMsg{err: err})

	if uiErr := <-uiDone; uiErr != nil && ctx.Err() == nil {
		logger.Warn("progress display failed", "error", uiErr)
	}
	return err
}
