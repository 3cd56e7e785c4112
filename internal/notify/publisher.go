// Package notify publishes run status messages for dashboard consumers.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/petrijr/opsflow/internal/pubsub"
	"github.com/petrijr/opsflow/pkg/api"
)

// Publisher serializes notifications and sends them to the outbound topic.
//
// Delivery is best-effort: a failed publish is logged and counted, never
// returned to the run that emitted it.
type Publisher struct {
	bus     pubsub.Provider
	topic   string
	timeout time.Duration
	logger  *slog.Logger

	published atomic.Int64
	failed    atomic.Int64
}

var _ api.Notifier = (*Publisher)(nil)

// NewPublisher creates a Publisher for topic. A zero timeout means 5s.
func NewPublisher(bus pubsub.Provider, topic string, timeout time.Duration, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = api.TopicDashboardUpdates
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{bus: bus, topic: topic, timeout: timeout, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, runID string, status api.Status, data map[string]any) {
	payload, err := json.Marshal(api.Notification{RunID: runID, Status: status, Data: data})
	if err != nil {
		p.failed.Add(1)
		p.logger.ErrorContext(ctx, "notification_encode_failed",
			slog.String("run_id", runID),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
		return
	}

	// A terminal notification for a cancelled run must still go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.bus.Publish(ctx, p.topic, payload); err != nil {
		p.failed.Add(1)
		p.logger.WarnContext(ctx, "notification_publish_failed",
			slog.String("run_id", runID),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
		return
	}
	p.published.Add(1)
}

// Stats returns the number of published and failed notifications.
func (p *Publisher) Stats() (published, failed int64) {
	return p.published.Load(), p.failed.Load()
}
