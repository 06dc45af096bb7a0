package status

import (
	"context"

	"github.com/hashicorp/go-hclog"
)

// LogSink writes status records to the log, one line per document plus
// one per condition. It is the sink used when no external status store
// is wired.
type LogSink struct {
	logger hclog.Logger
}

var _ Sink = &LogSink{}

func NewLogSink(logger hclog.Logger) *LogSink {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LogSink{logger: logger.Named("status")}
}

func (s *LogSink) Upsert(_ context.Context, update Update) error {
	logger := s.logger.With(
		"key", update.Key.String(),
		"revision", update.Record.ObservedRevision,
	)

	switch update.Record.Verdict {
	case VerdictValid:
		logger.Info("document valid")
	case VerdictOrphaned:
		logger.Info("document orphaned", "description", update.Record.Description)
	default:
		logger.Warn("document degraded",
			"verdict", update.Record.Verdict,
			"description", update.Record.Description)
	}

	for _, condition := range update.Record.Conditions {
		logger.Warn("document condition",
			"severity", condition.Severity,
			"reason", condition.Reason,
			"subject", condition.Subject,
			"message", condition.Message)
	}
	return nil
}
