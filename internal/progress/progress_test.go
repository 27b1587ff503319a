package progress

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/leadsync/internal/model"
)

func TestSyncModel_RunDoneQuits(t *testing.T) {
	m := newSyncModel(context.Background(), "sources", nil)
	want := model.RunSummary{NewJobsAdded: 3}

	next, cmd := m.Update(runDoneMsg{summary: want})
	got := next.(syncModel)

	if !got.done || got.summary.NewJobsAdded != 3 {
		t.Errorf("model after done = %+v", got)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if got.ctx.Err() == nil {
		t.Error("run context should be released once the run is done")
	}
	if got.View() != "" {
		t.Errorf("View() after done = %q, want empty", got.View())
	}
}

func TestSyncModel_CtrlCCancelsRunAndWaits(t *testing.T) {
	m := newSyncModel(context.Background(), "sources", nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	got := next.(syncModel)

	if cmd != nil {
		t.Error("ctrl+c should not quit before the run returns")
	}
	if !got.cancelling || got.ctx.Err() == nil {
		t.Error("ctrl+c should cancel the run context")
	}
	if !strings.Contains(got.View(), "Cancelling") {
		t.Errorf("View() = %q", got.View())
	}
}

func TestSyncModel_DoRunPassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newSyncModel(ctx, "sources", func(ctx context.Context) (model.RunSummary, error) {
		return model.RunSummary{Fetched: 1}, ctx.Err()
	})

	msg := m.doRun()().(runDoneMsg)
	if !errors.Is(msg.err, context.Canceled) || msg.summary.Fetched != 1 {
		t.Errorf("runDoneMsg = %+v", msg)
	}
}

func TestRun_ReturnsRunResult(t *testing.T) {
	var out bytes.Buffer
	summary, err := Run(context.Background(), "sources", func(ctx context.Context) (model.RunSummary, error) {
		return model.RunSummary{NewJobsAdded: 2, Unapplied: 12}, nil
	}, Options{Input: strings.NewReader(""), Output: &out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.NewJobsAdded != 2 || summary.Unapplied != 12 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(model.RunSummary{
		NewJobsAdded:       2,
		Fetched:            5,
		Duplicates:         1,
		Ineligible:         1,
		ClassifierFailures: 1,
		Unapplied:          12,
		Notified:           true,
		Duration:           1234 * time.Millisecond,
	}, 10, nil)

	for _, want := range []string{"Sync complete", "New leads", "Classifier failures", "12 (threshold 10)", "Alert", "1.23s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Insert failures") {
		t.Error("zero insert failures should be omitted")
	}
}

func TestRenderSummary_FailedAlert(t *testing.T) {
	out := RenderSummary(model.RunSummary{Unapplied: 12, NotifyFailed: true}, 10, nil)

	if !strings.Contains(out, "failed") {
		t.Errorf("summary should report the failed alert:\n%s", out)
	}
	if strings.Contains(out, "sent") {
		t.Errorf("failed alert rendered as sent:\n%s", out)
	}
}

func TestRenderSummary_FailureAndUnknownBacklog(t *testing.T) {
	out := RenderSummary(model.RunSummary{Unapplied: -1}, 10, errors.New("source down"))

	for _, want := range []string{"Sync failed", "source down", "unknown"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
