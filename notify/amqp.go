package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/workflow"
)

// DefaultExchange is the topic exchange workflow events are published to
const DefaultExchange = "jobpost.workflow"

// RoutingKey returns the routing key for an action, e.g. "jobpost.approve"
func RoutingKey(action workflow.Action) string {
	return "jobpost." + string(action)
}

// Channel is the subset of *amqp.Channel the emitter needs
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPEmitter publishes each event as a persistent JSON message to a topic exchange
type AMQPEmitter struct {
	channel  Channel
	exchange string
	conn     *amqp.Connection
	logger   *zap.SugaredLogger
}

// NewAMQPEmitter declares the durable topic exchange on ch
func NewAMQPEmitter(ch Channel, exchange string, l *zap.SugaredLogger) (*AMQPEmitter, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	return &AMQPEmitter{channel: ch, exchange: exchange, logger: l.Named("notify.amqp")}, nil
}

// DialAMQP connects to url, opens a channel and builds an emitter that owns both
func DialAMQP(url, exchange string, l *zap.SugaredLogger) (*AMQPEmitter, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open amqp channel")
	}
	e, err := NewAMQPEmitter(ch, exchange, l)
	if err != nil {
		conn.Close()
		return nil, err
	}
	e.conn = conn
	logger.AddPulseOpenSymbol(e.logger).Infow("Connected to message broker", "exchange", e.exchange)
	return e, nil
}

// Emit implements workflow.Emitter
func (e *AMQPEmitter) Emit(ctx context.Context, event workflow.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	err = e.channel.PublishWithContext(ctx, e.exchange, RoutingKey(event.Action), false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         string(event.Action),
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s for job post %s", event.Action, event.JobPostID)
	}
	return nil
}

// Close closes the broker connection when the emitter owns one
func (e *AMQPEmitter) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}
