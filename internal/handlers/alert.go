package handlers

import (
	"context"

	"github.com/petrijr/opsflow/pkg/api"
)

// AlertHandler publishes an alert notification for the run. It has no
// output.
//
// The payload carries the run data fields named in the node's "fields"
// config (default: low_skus), plus "message" when configured and the
// emitting node id.
type AlertHandler struct {
	notifier api.Notifier
}

func NewAlertHandler(notifier api.Notifier) *AlertHandler {
	if notifier == nil {
		notifier = api.NoopNotifier{}
	}
	return &AlertHandler{notifier: notifier}
}

func (h *AlertHandler) Handle(ctx context.Context, req api.Request) (api.Result, error) {
	fields := []string{"low_skus"}
	if raw, ok := req.Node.Config["fields"]; ok {
		if err := decodeInto(raw, &fields); err != nil {
			return api.Result{}, err
		}
	}

	payload := make(map[string]any, len(fields)+2)
	for _, f := range fields {
		if v, ok := req.Data[f]; ok {
			payload[f] = v
		}
	}
	if msg := configString(req.Node.Config, "message", ""); msg != "" {
		payload["message"] = msg
	}
	payload["node_id"] = req.Node.ID

	h.notifier.Publish(ctx, req.RunID, api.StatusAlert, payload)
	return api.Result{}, nil
}
