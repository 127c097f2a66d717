package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/logger"
)

// publisher is the slice of the messaging client the dispatcher needs.
type publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// Dispatcher publishes order lifecycle events downstream. Delivery is
// fire-and-forget: a broken broker is logged and the order moves on.
type Dispatcher struct {
	pub   publisher
	topic string
	logg  *logger.Logger
}

func NewDispatcher(pub publisher, topic string, logg *logger.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, topic: topic, logg: logg}
}

type orderEventPayload struct {
	OrderID    uuid.UUID `json:"order_id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderEvent publishes one event. It never returns an error and never
// blocks order progression on broker trouble.
func (d *Dispatcher) OrderEvent(ctx context.Context, orderID uuid.UUID, event string) {
	if d == nil || d.pub == nil {
		return
	}
	payload := orderEventPayload{
		OrderID:    orderID,
		Event:      event,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		d.logError(ctx, orderID, event, err)
		return
	}
	attrs := map[string]string{
		"order_id": orderID.String(),
		"event":    event,
	}
	if _, err := d.pub.Publish(ctx, d.topic, data, attrs); err != nil {
		d.logError(ctx, orderID, event, err)
	}
}

func (d *Dispatcher) logError(ctx context.Context, orderID uuid.UUID, event string, err error) {
	if d.logg == nil {
		return
	}
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"event":    event,
	})
	d.logg.Error(logCtx, "order event publish failed", err)
}
