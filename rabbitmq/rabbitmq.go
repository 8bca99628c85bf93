package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/models"
)

type Topology struct {
	Exchange        string
	Queue           string
	DeadLetterQueue string
}

func (t Topology) deadLetterExchange() string {
	return t.DeadLetterQueue + "_exchange"
}

type channelOpener interface {
	Channel() (*amqp.Channel, error)
}

// RabbitMQ holds one connection. Channel is used for topology and publishing;
// consumers get their own channels from ConsumerChannel.
type RabbitMQ struct {
	Conn     *amqp.Connection
	Channel  *amqp.Channel
	Topology Topology

	opener    channelOpener
	consumers []*amqp.Channel
}

func NewRabbitMQ(url string, topology Topology) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{
		Conn:     conn,
		Channel:  ch,
		Topology: topology,
		opener:   conn,
	}, nil
}

// ConsumerChannel opens a channel on the same connection for consuming, so a
// consumer-side channel error or flow control never stalls publishing. Close
// closes it.
func (r *RabbitMQ) ConsumerChannel() (*amqp.Channel, error) {
	ch, err := r.opener.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	r.consumers = append(r.consumers, ch)
	return ch, nil
}

// SetupQueues declares the order exchange, the order queue and the
// dead-letter queue that receives rejected messages.
func (r *RabbitMQ) SetupQueues() error {
	t := r.Topology

	if err := r.Channel.ExchangeDeclare(
		t.deadLetterExchange(),
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare dead-letter exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		t.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return fmt.Errorf("declare dead-letter queue: %w", err)
	}

	if err := r.Channel.QueueBind(t.DeadLetterQueue, t.DeadLetterQueue, t.deadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(
		t.Exchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		t.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    t.deadLetterExchange(),
			"x-dead-letter-routing-key": t.DeadLetterQueue,
		},
	); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}

	if err := r.Channel.QueueBind(t.Queue, "", t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue: %w", err)
	}
	return nil
}

// PublishOrderCreated sends event as a persistent JSON message.
func (r *RabbitMQ) PublishOrderCreated(ctx context.Context, event models.OrderEvent) error {
	msg, err := orderEventMessage(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.Channel.PublishWithContext(ctx,
		r.Topology.Exchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	); err != nil {
		return fmt.Errorf("publish order %d: %w", event.OrderID, err)
	}
	return nil
}

func orderEventMessage(event models.OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal order event: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Occurred,
		ContentType:  "application/json",
		MessageId:    strconv.FormatInt(event.OrderID, 10),
		Type:         event.Type,
		Body:         body,
	}, nil
}

func (r *RabbitMQ) Close() error {
	for _, ch := range r.consumers {
		_ = ch.Close()
	}
	r.consumers = nil
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			return err
		}
	}
	if r.Conn != nil {
		return r.Conn.Close()
	}
	return nil
}
