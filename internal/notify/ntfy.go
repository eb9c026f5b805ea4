package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

const defaultNtfyServer = "https://ntfy.sh"

// NtfyNotifier publishes run summaries to an ntfy topic. The ntfy API
// is a plain POST of the message body to <server>/<topic>.
type NtfyNotifier struct {
	server     string
	topic      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNtfyNotifier returns a notifier publishing to topic on ntfy.sh.
func NewNtfyNotifier(topic string, httpClient *http.Client, logger *slog.Logger) *NtfyNotifier {
	return &NtfyNotifier{
		server:     defaultNtfyServer,
		topic:      topic,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (n *NtfyNotifier) NotifyRun(ctx context.Context, s model.RunSummary) error {
	url := n.server + "/" + n.topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(runText(s)))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("Title", runTitle(s))
	if s.Status == model.RunFailed || len(s.Failures) > 0 {
		req.Header.Set("Priority", "high")
		req.Header.Set("Tags", "warning")
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy returned %d", resp.StatusCode)
	}
	n.logger.Info("ntfy run summary sent", "topic", n.topic, "run_id", s.RunID)
	return nil
}
