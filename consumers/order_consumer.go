package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storefront/models"
)

var eventsConsumed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_order_events_consumed_total",
		Help: "Order events consumed from the broker",
	},
	[]string{"type"},
)

// OrderConsumer reads order events from the order queue and logs each
// committed order. Messages it cannot decode are rejected without requeue,
// which routes them to the dead-letter queue.
type OrderConsumer struct {
	ch              *amqp.Channel
	queue           string
	deadLetterQueue string
	logger          *zap.Logger
}

func NewOrderConsumer(ch *amqp.Channel, queue, deadLetterQueue string, logger *zap.Logger) *OrderConsumer {
	return &OrderConsumer{ch: ch, queue: queue, deadLetterQueue: deadLetterQueue, logger: logger}
}

// Start registers both consumers and processes deliveries until ctx is done
// or the channel closes.
func (oc *OrderConsumer) Start(ctx context.Context) error {
	msgs, err := oc.ch.Consume(
		oc.queue,
		"storefront", // consumer tag
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", oc.queue, err)
	}

	dlqMsgs, err := oc.ch.Consume(oc.deadLetterQueue, "storefront-dlq", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", oc.deadLetterQueue, err)
	}

	go oc.loop(ctx, msgs, oc.processOrderMessage)
	go oc.loop(ctx, dlqMsgs, oc.processDeadLetter)
	return nil
}

func (oc *OrderConsumer) loop(ctx context.Context, msgs <-chan amqp.Delivery, handle func(amqp.Delivery)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(msg)
		}
	}
}

func (oc *OrderConsumer) processOrderMessage(msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			oc.logger.Error("Recovered from panic in message processing", zap.Any("panic", r))
			_ = msg.Nack(false, false)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.OrderID == 0 {
		oc.logger.Warn("Invalid order event, dead-lettering",
			zap.ByteString("body", msg.Body), zap.Error(err))
		if err := msg.Nack(false, false); err != nil {
			oc.logger.Error("Nack failed", zap.Error(err))
		}
		return
	}

	switch event.Type {
	case models.OrderEventCreated:
		oc.logger.Info("Order committed",
			zap.Int64("order_id", event.OrderID),
			zap.Int64("total", event.Total),
			zap.Int("item_count", event.ItemCount),
			zap.Time("occurred", event.Occurred))
	default:
		oc.logger.Warn("Unknown order event type",
			zap.String("type", event.Type), zap.Int64("order_id", event.OrderID))
	}
	eventsConsumed.WithLabelValues(event.Type).Inc()

	if err := msg.Ack(false); err != nil {
		oc.logger.Error("Ack failed", zap.Int64("order_id", event.OrderID), zap.Error(err))
	}
}

func (oc *OrderConsumer) processDeadLetter(msg amqp.Delivery) {
	oc.logger.Warn("Received dead letter", zap.ByteString("body", msg.Body))
	if err := msg.Ack(false); err != nil {
		oc.logger.Error("Ack failed", zap.Error(err))
	}
}
