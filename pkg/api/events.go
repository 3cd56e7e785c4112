package api

// Default channel names.
const (
	TopicOrderEvents      = "order_events"
	TopicDashboardUpdates = "dashboard_updates"
)

// Event is an inbound business event. It selects a workflow by id and seeds
// the run data.
type Event struct {
	Type       string         `json:"type" binding:"required"`
	Data       map[string]any `json:"data"`
	WorkflowID string         `json:"workflow_id" binding:"required"`
}

// Notification is the payload published on the dashboard channel.
type Notification struct {
	RunID  string         `json:"run_id"`
	Status Status         `json:"status"`
	Data   map[string]any `json:"data"`
}

// OrderItem is one order line as carried in event data under "items".
type OrderItem struct {
	SKU string `json:"sku" mapstructure:"sku"`
	Qty int    `json:"qty" mapstructure:"qty"`
}
