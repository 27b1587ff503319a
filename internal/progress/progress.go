package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/leadsync/internal/model"
)

// RunFunc performs one sync run.
type RunFunc func(ctx context.Context) (model.RunSummary, error)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(20)

	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type runDoneMsg struct {
	summary model.RunSummary
	err     error
}

type syncModel struct {
	spinner    spinner.Model
	label      string
	run        RunFunc
	ctx        context.Context
	cancel     context.CancelFunc
	summary    model.RunSummary
	err        error
	cancelling bool
	done       bool
}

func newSyncModel(ctx context.Context, label string, run RunFunc) syncModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	ctx, cancel := context.WithCancel(ctx)
	return syncModel{
		spinner: s,
		label:   label,
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (m syncModel) Init() tea.Cmd {
	return tea.Batch(m.doRun(), m.spinner.Tick)
}

func (m syncModel) doRun() tea.Cmd {
	run, ctx := m.run, m.ctx
	return func() tea.Msg {
		summary, err := run(ctx)
		return runDoneMsg{summary: summary, err: err}
	}
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runDoneMsg:
		m.summary = msg.summary
		m.err = msg.err
		m.done = true
		m.cancel()
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.cancelling {
			// Keep waiting so completed work is still reported.
			m.cancelling = true
			m.cancel()
		}
	}
	return m, nil
}

func (m syncModel) View() string {
	if m.done {
		return ""
	}
	if m.cancelling {
		return fmt.Sprintf("%s Cancelling %s...\n", m.spinner.View(), m.label)
	}
	return fmt.Sprintf("%s Syncing %s... %s\n", m.spinner.View(), m.label, dimStyle.Render("(ctrl+c to stop)"))
}

// Options controls where the spinner reads keys from and renders to.
type Options struct {
	Input  io.Reader
	Output io.Writer
}

// Run shows a spinner while run executes. It renders inline (no alt screen)
// and returns whatever run returned.
func Run(ctx context.Context, label string, run RunFunc, opts Options) (model.RunSummary, error) {
	var progOpts []tea.ProgramOption
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}

	m := newSyncModel(ctx, label, run)
	defer m.cancel()

	result, err := tea.NewProgram(m, progOpts...).Run()
	if err != nil {
		return model.RunSummary{}, err
	}
	final := result.(syncModel)
	return final.summary, final.err
}

// RenderSummary formats a run summary as a bordered box.
func RenderSummary(s model.RunSummary, threshold int, runErr error) string {
	var b strings.Builder

	switch {
	case runErr != nil:
		b.WriteString(errorStyle.Render("Sync failed"))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(runErr.Error()))
		b.WriteString("\n\n")
	default:
		b.WriteString(titleStyle.Render("Sync complete"))
		b.WriteString("\n\n")
	}

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("New leads", goodStyle.Render(fmt.Sprint(s.NewJobsAdded)))
	row("Fetched", fmt.Sprint(s.Fetched))
	row("Already stored", fmt.Sprint(s.Duplicates))
	row("Ineligible", fmt.Sprint(s.Ineligible))
	if s.ClassifierFailures > 0 {
		row("Classifier failures", warnStyle.Render(fmt.Sprint(s.ClassifierFailures)))
	}
	if s.InsertFailures > 0 {
		row("Insert failures", warnStyle.Render(fmt.Sprint(s.InsertFailures)))
	}

	switch {
	case s.Unapplied < 0:
		row("Unapplied backlog", dimStyle.Render("unknown"))
	case s.Unapplied >= threshold:
		row("Unapplied backlog", warnStyle.Render(fmt.Sprintf("%d (threshold %d)", s.Unapplied, threshold)))
	default:
		row("Unapplied backlog", fmt.Sprintf("%d (threshold %d)", s.Unapplied, threshold))
	}

	switch {
	case s.Notified:
		row("Alert", "sent")
	case s.NotifyFailed:
		row("Alert", warnStyle.Render("failed"))
	}
	if s.Duration > 0 {
		row("Took", s.Duration.Round(10*time.Millisecond).String())
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
