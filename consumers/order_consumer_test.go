package consumers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"storefront/models"
)

type fakeAcknowledger struct {
	acked    int
	nacked   int
	requeued bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.acked++
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func newTestConsumer() (*OrderConsumer, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewOrderConsumer(nil, "orders", "orders_dlq", zap.New(core)), logs
}

func TestProcessOrderMessage_Created(t *testing.T) {
	oc, logs := newTestConsumer()
	ack := &fakeAcknowledger{}

	body, err := json.Marshal(models.OrderEvent{
		OrderID: 42, Type: models.OrderEventCreated, Total: 1000, ItemCount: 1, Occurred: time.Now(),
	})
	require.NoError(t, err)

	before := testutil.ToFloat64(eventsConsumed.WithLabelValues(models.OrderEventCreated))
	oc.processOrderMessage(amqp.Delivery{Acknowledger: ack, Body: body})

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
	assert.Equal(t, 1, logs.FilterMessage("Order committed").Len())
	assert.Equal(t, before+1, testutil.ToFloat64(eventsConsumed.WithLabelValues(models.OrderEventCreated)))
}

func TestProcessOrderMessage_Malformed(t *testing.T) {
	oc, logs := newTestConsumer()

	for _, body := range []string{"not json", `{"type":"created"}`} {
		ack := &fakeAcknowledger{}
		oc.processOrderMessage(amqp.Delivery{Acknowledger: ack, Body: []byte(body)})

		assert.Equal(t, 0, ack.acked)
		assert.Equal(t, 1, ack.nacked)
		assert.False(t, ack.requeued, "malformed messages go to the dead-letter queue")
	}
	assert.Equal(t, 2, logs.FilterMessage("Invalid order event, dead-lettering").Len())
}

func TestProcessOrderMessage_UnknownType(t *testing.T) {
	oc, logs := newTestConsumer()
	ack := &fakeAcknowledger{}

	oc.processOrderMessage(amqp.Delivery{Acknowledger: ack, Body: []byte(`{"orderId":7,"type":"refunded"}`)})

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 1, logs.FilterMessage("Unknown order event type").Len())
}

func TestProcessDeadLetter(t *testing.T) {
	oc, logs := newTestConsumer()
	ack := &fakeAcknowledger{}

	oc.processDeadLetter(amqp.Delivery{Acknowledger: ack, Body: []byte("garbage")})

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 1, logs.FilterMessage("Received dead letter").Len())
}
