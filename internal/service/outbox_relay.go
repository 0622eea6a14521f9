package service

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/podium-scheduler/internal/model"
)

// EventPublisher delivers one message to the broker; queue.Publisher
// implements it.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkPublished(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, cause error) error
}

// OutboxRelay moves committed booking events from the outbox table to the
// broker. A row is stamped only after the broker accepted it, so a crash in
// between produces a redelivery that consumers drop by message id.
type OutboxRelay struct {
	store     OutboxStore
	publisher EventPublisher
	batch     int
	timeout   time.Duration

	sched gocron.Scheduler
}

func NewOutboxRelay(store OutboxStore, publisher EventPublisher, batch int, timeout time.Duration) *OutboxRelay {
	if batch <= 0 {
		batch = 100
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OutboxRelay{store: store, publisher: publisher, batch: batch, timeout: timeout}
}

// RelayOnce publishes one batch and returns how many events were delivered.
// It stops at the first publish failure so that events keep their order.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.store.Pending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, m := range pending {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.publisher.Publish(pctx, m.RoutingKey, m.EventID, m.Payload)
		cancel()
		if err != nil {
			if merr := r.store.MarkFailed(ctx, m.ID, err); merr != nil {
				log.Printf("outbox: mark %s failed: %v", m.EventID, merr)
			}
			return sent, err
		}
		if err := r.store.MarkPublished(ctx, m.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Start runs RelayOnce every interval until Stop. Runs never overlap.
func (r *OutboxRelay) Start(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := r.RelayOnce(context.Background())
			if err != nil {
				log.Printf("outbox: relay: %v", err)
			}
			if n > 0 {
				log.Printf("outbox: published %d event(s)", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	s.Start()
	r.sched = s
	return nil
}

// Stop waits for a running relay pass and stops the schedule.
func (r *OutboxRelay) Stop() error {
	if r.sched == nil {
		return nil
	}
	return r.sched.Shutdown()
}
