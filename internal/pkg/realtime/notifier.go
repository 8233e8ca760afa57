package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yigit/earlyalert/internal/app/models"
)

// EventNotification is the event type for a newly created notification
const EventNotification = "notification"

// Notifier publishes committed notifications on the bus
type Notifier struct {
	bus Bus
}

// NewNotifier creates a Notifier
func NewNotifier(bus Bus) *Notifier {
	return &Notifier{bus: bus}
}

// Publish pushes n to its recipient's open connections
func (p *Notifier) Publish(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, Event{
		Type:      EventNotification,
		UserID:    n.UserID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// Attach wires the bus forwarder into the hub
func Attach(ctx context.Context, bus Bus, hub *Hub) error {
	return bus.StartForwarder(ctx, hub.Deliver)
}
