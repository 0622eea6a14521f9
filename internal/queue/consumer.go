package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// maxSeen bounds the redelivery filter; it only needs to cover the
// broker's redelivery horizon.
const maxSeen = 10000

// Consumer binds a durable queue to every booking.* routing key and appends
// one line per event to a log file.
type Consumer struct {
	URL      string
	Exchange string
	Queue    string
	LogPath  string

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewConsumer returns a Consumer writing to logPath.
func NewConsumer(url, exchange, queue, logPath string) *Consumer {
	return &Consumer{URL: url, Exchange: exchange, Queue: queue, LogPath: logPath, seen: make(map[string]struct{})}
}

// Run connects and consumes until ctx ends, reconnecting with exponential
// backoff (1s doubling up to 30s) whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}
	if err := declareExchange(ch, c.Exchange); err != nil {
		return err
	}
	if err := declareBookingQueue(ch, c.Exchange, c.Queue); err != nil {
		return err
	}

	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.MessageId, d.Body); err != nil {
				log.Printf("booking-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one delivery and appends it to the log. Redeliveries of an
// already handled message id are acknowledged without a second line.
func (c *Consumer) Handle(messageID string, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if messageID == "" {
		messageID = ev.EventID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if messageID != "" {
		if _, dup := c.seen[messageID]; dup {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(ev.LogLine()); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	if messageID != "" {
		if len(c.seen) >= maxSeen {
			c.seen = make(map[string]struct{})
		}
		c.seen[messageID] = struct{}{}
	}
	return nil
}
