package events

import (
	"context"

	"storefront/models"
)

// Publisher announces committed orders to other systems. Delivery is best
// effort: a failed publish never undoes the order.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event models.OrderEvent) error
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishOrderCreated(context.Context, models.OrderEvent) error { return nil }

func (Nop) Close() error { return nil }
