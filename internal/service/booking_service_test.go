package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/queue"
)

var (
	testNow = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	trainer = authz.Identity{UserID: 1, Role: authz.RoleTrainer}
	parent  = authz.Identity{UserID: 2, Role: authz.RoleParent}
	other   = authz.Identity{UserID: 3, Role: authz.RoleParent}
)

var fastRetry = RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

type bookingFixture struct {
	store *memStore
	svc   *BookingService
	now   time.Time
	mu    sync.Mutex
	seq   int
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{store: newMemStore(), now: testNow}
	f.svc = NewBookingService(f.store, memBookings{f.store}, memSlots{f.store}, BookingOptions{
		Retry: &fastRetry,
		Now: func() time.Time {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.now
		},
		EventID: func() string {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.seq++
			return fmt.Sprintf("evt-%d", f.seq)
		},
	})
	return f
}

func (f *bookingFixture) setNow(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func (f *bookingFixture) slot(capacity int, start time.Time) model.Slot {
	st := f.store.addType(model.SessionType{
		Name: "Group Swim", DurationMinutes: 60, MaxParticipants: capacity,
		Credits: 1, Price: decimal.NewFromInt(25), IsActive: true,
	})
	return f.store.addSlot(st.ID, start)
}

func TestCreateBookingConfirmsAndQueuesEvent(t *testing.T) {
	f := newBookingFixture(t)
	sl := f.slot(4, testNow.Add(72*time.Hour))
	child := f.store.addChild(parent.UserID, "Ava")

	got, err := f.svc.Create(context.Background(), parent, sl.ID, child.ID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.Status != model.BookingConfirmed || got.PaymentMethod != PaymentCredits {
		t.Fatalf("booking = %+v", got.Booking)
	}
	if got.Child.FirstName != "Ava" || got.Slot.SessionType.Name != "Group Swim" {
		t.Fatalf("detail = %+v", got)
	}

	events := f.store.events()
	if len(events) != 1 {
		t.Fatalf("outbox has %d events, want 1", len(events))
	}
	if events[0].RoutingKey != queue.RoutingBookingConfirmed || events[0].EventID != "evt-1" {
		t.Fatalf("event = %+v", events[0])
	}
	var ev queue.BookingEvent
	if err := json.Unmarshal(events[0].Payload, &ev); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ev.BookingID != got.ID || ev.ChildName != "Ava Test" || ev.Status != "confirmed" {
		t.Fatalf("payload = %+v", ev)
	}
}

func TestCreateBookingConcurrentRespectsCapacity(t *testing.T) {
	const (
		capacity = 3
		callers  = 20
	)
	f := newBookingFixture(t)
	sl := f.slot(capacity, testNow.Add(72*time.Hour))
	children := make([]model.Child, callers)
	for i := range children {
		children[i] = f.store.addChild(parent.UserID, fmt.Sprintf("kid-%02d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, full := 0, 0
	for _, c := range children {
		wg.Add(1)
		go func(childID uint64) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), parent, sl.ID, childID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, apperr.ErrSlotFull):
				full++
			default:
				t.Errorf("Create() unexpected error: %v", err)
			}
		}(c.ID)
	}
	wg.Wait()

	if accepted != capacity || full != callers-capacity {
		t.Fatalf("accepted=%d full=%d, want %d and %d", accepted, full, capacity, callers-capacity)
	}
	if n := len(f.store.events()); n != capacity {
		t.Fatalf("outbox has %d events, want %d", n, capacity)
	}
	d, err := memSlots{f.store}.GetByID(context.Background(), sl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.Remaining != 0 || d.Confirmed != capacity {
		t.Fatalf("slot detail = confirmed %d remaining %d", d.Confirmed, d.Remaining)
	}
}

func TestCreateBookingRejections(t *testing.T) {
	f := newBookingFixture(t)
	future := f.slot(5, testNow.Add(48*time.Hour))
	started := f.slot(5, testNow.Add(-time.Minute))
	startsNow := f.slot(5, testNow)
	mine := f.store.addChild(parent.UserID, "Ben")
	theirs := f.store.addChild(other.UserID, "Cleo")

	if _, err := f.svc.Create(context.Background(), parent, future.ID, mine.ID); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	tests := []struct {
		name    string
		id      authz.Identity
		slotID  uint64
		childID uint64
		want    error
	}{
		{"trainer cannot book", trainer, future.ID, mine.ID, apperr.ErrForbidden},
		{"session started", parent, started.ID, mine.ID, apperr.ErrPastSession},
		{"session starting now", parent, startsNow.ID, mine.ID, apperr.ErrPastSession},
		{"same child twice", parent, future.ID, mine.ID, apperr.ErrDuplicateBooking},
		{"someone else's child", parent, future.ID, theirs.ID, apperr.ErrNotFound},
		{"unknown slot", parent, 9999, mine.ID, apperr.ErrNotFound},
		{"missing slot id", parent, 0, mine.ID, apperr.ErrInvalidInput},
		{"missing child id", parent, future.ID, 0, apperr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.store.events())
			_, err := f.svc.Create(context.Background(), tt.id, tt.slotID, tt.childID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
			if after := len(f.store.events()); after != before {
				t.Fatalf("outbox grew from %d to %d on rejection", before, after)
			}
		})
	}
}

func TestForbiddenCallsNeverReachStore(t *testing.T) {
	f := newBookingFixture(t)
	sl := f.slot(2, testNow.Add(48*time.Hour))
	child := f.store.addChild(parent.UserID, "Dan")

	if _, err := f.svc.Create(context.Background(), trainer, sl.ID, child.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("Create() error = %v", err)
	}
	if err := f.svc.Cancel(context.Background(), trainer, 1); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("Cancel() error = %v", err)
	}
	if _, err := f.svc.Roster(context.Background(), parent, sl.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("Roster() error = %v", err)
	}
	if _, err := f.svc.ListMine(context.Background(), authz.Identity{Role: authz.RoleParent}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("ListMine() error = %v", err)
	}
	if reads, txCalls := f.store.counts(); reads != 0 || txCalls != 0 {
		t.Fatalf("store touched: reads=%d tx=%d", reads, txCalls)
	}
}

func TestCancelBookingWindow(t *testing.T) {
	tests := []struct {
		name     string
		untilRun time.Duration
		want     error
	}{
		{"two days ahead", 48 * time.Hour, nil},
		{"just over the window", 24*time.Hour + time.Second, nil},
		{"exactly the window", 24 * time.Hour, apperr.ErrCancellationWindowExpired},
		{"inside the window", 23 * time.Hour, apperr.ErrCancellationWindowExpired},
		{"already started", -time.Hour, apperr.ErrCancellationWindowExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t)
			start := testNow.Add(72 * time.Hour)
			sl := f.slot(2, start)
			child := f.store.addChild(parent.UserID, "Eve")
			b, err := f.svc.Create(context.Background(), parent, sl.ID, child.ID)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			f.setNow(start.Add(-tt.untilRun))
			err = f.svc.Cancel(context.Background(), parent, b.ID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Cancel() error = %v, want %v", err, tt.want)
			}
			wantStatus := model.BookingCancelled
			if tt.want != nil {
				wantStatus = model.BookingConfirmed
			}
			if got := f.store.booking(b.ID).Status; got != wantStatus {
				t.Fatalf("status = %s, want %s", got, wantStatus)
			}
		})
	}
}

func TestCancelBookingTwiceIsInvalidTransition(t *testing.T) {
	f := newBookingFixture(t)
	sl := f.slot(2, testNow.Add(72*time.Hour))
	child := f.store.addChild(parent.UserID, "Finn")
	b, err := f.svc.Create(context.Background(), parent, sl.ID, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Cancel(context.Background(), parent, b.ID); err != nil {
		t.Fatalf("first Cancel() error = %v", err)
	}
	if err := f.svc.Cancel(context.Background(), parent, b.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("second Cancel() error = %v, want ErrInvalidTransition", err)
	}

	events := f.store.events()
	if len(events) != 2 || events[1].RoutingKey != queue.RoutingBookingCancelled {
		t.Fatalf("events = %+v", events)
	}
}

func TestCancelOtherParentsBookingIsNotFound(t *testing.T) {
	f := newBookingFixture(t)
	sl := f.slot(2, testNow.Add(72*time.Hour))
	child := f.store.addChild(parent.UserID, "Gus")
	b, err := f.svc.Create(context.Background(), parent, sl.ID, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Cancel(context.Background(), other, b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Cancel() error = %v, want ErrNotFound", err)
	}
	if got := f.store.booking(b.ID).Status; got != model.BookingConfirmed {
		t.Fatalf("status = %s", got)
	}
}

func TestCancelFreesCapacityAndAllowsRebooking(t *testing.T) {
	f := newBookingFixture(t)
	sl := f.slot(1, testNow.Add(72*time.Hour))
	first := f.store.addChild(parent.UserID, "Hana")
	second := f.store.addChild(parent.UserID, "Ivo")

	b, err := f.svc.Create(context.Background(), parent, sl.ID, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Create(context.Background(), parent, sl.ID, second.ID); !errors.Is(err, apperr.ErrSlotFull) {
		t.Fatalf("Create() on full slot error = %v", err)
	}
	if err := f.svc.Cancel(context.Background(), parent, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Create(context.Background(), parent, sl.ID, second.ID); err != nil {
		t.Fatalf("Create() after cancel error = %v", err)
	}
	if err := f.svc.Cancel(context.Background(), parent, b.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("cancel of cancelled booking error = %v", err)
	}
	// the cancelled booking no longer counts as a duplicate, only capacity stops it
	if _, err := f.svc.Create(context.Background(), parent, sl.ID, first.ID); !errors.Is(err, apperr.ErrSlotFull) {
		t.Fatalf("rebook on full slot error = %v, want ErrSlotFull", err)
	}
}

func TestBookingWritesAreNotRetried(t *testing.T) {
	f := newBookingFixture(t)
	sl := f.slot(2, testNow.Add(72*time.Hour))
	child := f.store.addChild(parent.UserID, "Jo")

	f.store.failTx = errConnRefused
	_, err := f.svc.Create(context.Background(), parent, sl.ID, child.ID)
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("Create() error = %v, want ErrStorageUnavailable", err)
	}
	if _, txCalls := f.store.counts(); txCalls != 1 {
		t.Fatalf("tx attempts = %d, want 1", txCalls)
	}
}

func TestListMineAndRoster(t *testing.T) {
	f := newBookingFixture(t)
	sl := f.slot(3, testNow.Add(72*time.Hour))
	a := f.store.addChild(parent.UserID, "Kai")
	b := f.store.addChild(other.UserID, "Lea")
	if _, err := f.svc.Create(context.Background(), parent, sl.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Create(context.Background(), other, sl.ID, b.ID); err != nil {
		t.Fatal(err)
	}

	mine, err := f.svc.ListMine(context.Background(), parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ChildID != a.ID {
		t.Fatalf("ListMine() = %+v", mine)
	}

	f.store.failReads = 1
	r, err := f.svc.Roster(context.Background(), trainer, sl.ID)
	if err != nil {
		t.Fatalf("Roster() error = %v", err)
	}
	if len(r.Bookings) != 2 || r.Slot.Remaining != 1 {
		t.Fatalf("roster = %d bookings, remaining %d", len(r.Bookings), r.Slot.Remaining)
	}
}
