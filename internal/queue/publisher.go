package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrNacked is returned when the broker refused to take a message.
	ErrNacked = errors.New("broker nacked message")
	// ErrUnroutable is returned when no queue is bound for the routing key.
	ErrUnroutable = errors.New("message unroutable")
)

// Publisher publishes pre-serialized events to a durable topic exchange
// with publisher confirms. Publish returns nil only once the broker acked
// the message and did not return it as unroutable. The connection is opened
// lazily and dropped on any failure so that the next call redials.
type Publisher struct {
	url      string
	exchange string
	queue    string

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	returns chan amqp.Return
}

// NewPublisher returns a Publisher for the broker at url. When queue is
// set it is declared and bound to every booking.* key, so events wait in
// it even while no consumer runs.
func NewPublisher(url, exchange, queue string) *Publisher {
	return &Publisher{url: url, exchange: exchange, queue: queue}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	fail := func(err error) (*amqp.Channel, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		return fail(err)
	}
	if p.queue != "" {
		if err := declareBookingQueue(ch, p.exchange, p.queue); err != nil {
			return fail(err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		return fail(fmt.Errorf("confirm mode: %w", err))
	}
	p.returns = ch.NotifyReturn(make(chan amqp.Return, 1))
	p.conn, p.ch = conn, ch
	return ch, nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	// Durable so bindings survive broker restarts.
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// declareBookingQueue declares the durable booking queue and binds it to
// every booking.* routing key.
func declareBookingQueue(ch *amqp.Channel, exchange, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(queue, "booking.*", exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

// confirmation is the part of *amqp.DeferredConfirmation awaitConfirm uses.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// awaitConfirm waits for the broker's verdict on one publish. A mandatory
// message the broker could not route comes back on returns before its ack.
func awaitConfirm(ctx context.Context, c confirmation, returns <-chan amqp.Return) error {
	acked, err := c.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return ErrNacked
	}
	select {
	case r, ok := <-returns:
		if ok {
			return fmt.Errorf("%w: %d %s", ErrUnroutable, r.ReplyCode, r.ReplyText)
		}
		return nil
	default:
		return nil
	}
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn, p.returns = nil, nil, nil
}

// Publish sends body under routingKey. messageID is set as the AMQP
// MessageId so consumers can drop redeliveries.
func (p *Publisher) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		log.Printf("rabbitmq: %v", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// drop a stale return left by an earlier failed publish
	select {
	case <-p.returns:
	default:
	}
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, true, false, pub)
	if err != nil {
		log.Printf("rabbitmq: publish %s failed: %v", routingKey, err)
		p.resetLocked()
		return err
	}
	if dc == nil {
		p.resetLocked()
		return errors.New("rabbitmq: channel not in confirm mode")
	}
	if err := awaitConfirm(ctx, dc, p.returns); err != nil {
		log.Printf("rabbitmq: publish %s %s not confirmed: %v", routingKey, messageID, err)
		p.resetLocked()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
