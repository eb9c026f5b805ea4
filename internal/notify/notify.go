// Package notify pushes one summary per pipeline run to an external
// channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Ensure the implementations satisfy model.RunNotifier.
var (
	_ model.RunNotifier = (*NoopNotifier)(nil)
	_ model.RunNotifier = (*NtfyNotifier)(nil)
	_ model.RunNotifier = (*SlackNotifier)(nil)
)

// NoopNotifier is used when notifications are disabled.
type NoopNotifier struct {
	logger *slog.Logger
}

func NewNoopNotifier(logger *slog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) NotifyRun(_ context.Context, s model.RunSummary) error {
	n.logger.Debug("notifications disabled, skipping run summary", "run_id", s.RunID)
	return nil
}

// SendTestMessage pushes a fabricated run summary through the given
// notifier to verify the integration works end to end.
func SendTestMessage(ctx context.Context, n model.RunNotifier) error {
	now := time.Now()
	return n.NotifyRun(ctx, model.RunSummary{
		RunID:      "test-0000",
		StartedAt:  now.Add(-42 * time.Second),
		FinishedAt: now,
		Status:     model.RunOK,
		Companies:  2,
		Postings:   17,
		Appeared:   3,
		Updated:    1,
		Closed:     2,
	})
}

func runTitle(s model.RunSummary) string {
	if s.Status == model.RunFailed {
		return "aijobs run failed"
	}
	return "aijobs run complete"
}

// runText renders the plain-text run summary shared by the notifiers.
func runText(s model.RunSummary) string {
	text := fmt.Sprintf("%d appeared, %d updated, %d closed across %d companies (%d postings) in %s",
		s.Appeared, s.Updated, s.Closed, s.Companies, s.Postings, s.Duration().Round(time.Second))
	if len(s.Failures) > 0 {
		text += fmt.Sprintf("\n%d adapters failed:", len(s.Failures))
		for _, f := range s.Failures {
			text += "\n- " + f
		}
	}
	if s.Err != "" {
		text += "\nerror: " + s.Err
	}
	return text
}
