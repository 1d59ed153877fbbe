package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes every notification to the logger. Used when no Telegram
// credentials are configured and in dry runs.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendDigest logs one line per posting.
func (n *LogNotifier) SendDigest(_ context.Context, postings []model.JobPosting) error {
	for _, p := range postings {
		n.logger.Info("digest posting",
			"title", p.Title,
			"company", p.Company,
			"location", p.Location,
			"remote", p.Remote,
			"relevance", p.Relevance,
			"url", p.ApplyURL,
		)
	}
	return nil
}

func (n *LogNotifier) SendStatus(_ context.Context, text string) error {
	n.logger.Info("status", "text", text)
	return nil
}

func (n *LogNotifier) SendError(_ context.Context, text string) error {
	n.logger.Error("alert", "text", text)
	return nil
}

func (n *LogNotifier) CreateProgressMessage(_ context.Context, text string) (model.ProgressHandle, error) {
	n.logger.Info("progress", "text", text)
	return "log", nil
}

func (n *LogNotifier) UpdateProgressMessage(_ context.Context, _ model.ProgressHandle, text string) error {
	n.logger.Info("progress", "text", text)
	return nil
}
