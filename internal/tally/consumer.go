package tally

import (
	"context"
	"encoding/json"
	"log/slog"

	"proctoring/internal/proctor"
	"proctoring/internal/queue"
)

// Consume drains activity messages from q into t until ctx is cancelled or
// the queue closes. Bad messages are logged and skipped.
func Consume(ctx context.Context, q queue.Queue, t Tally, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != queue.TypeActivity {
			continue
		}
		var evt proctor.ActivityEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			logger.Warn("drop malformed activity message", "err", err)
			continue
		}
		if err := t.Incr(ctx, evt.StudentID, evt.Type); err != nil {
			logger.Error("tally increment failed", "event_id", evt.ID, "err", err)
			continue
		}
		logger.Debug("activity tallied", "event_id", evt.ID, "student_id", evt.StudentID, "type", evt.Type)
	}
	return ctx.Err()
}
