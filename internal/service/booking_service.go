package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/booking"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/queue"
	"github.com/iliyamo/podium-scheduler/internal/repository"
)

// PaymentCredits is the only payment method bookings are created with.
const PaymentCredits = "credits"

// BookingService creates and cancels bookings. Acceptance for one slot is
// serialized by the ledger inside this process and by the slot row lock
// across processes; capacity, duplicate and timing checks all run while
// both are held.
type BookingService struct {
	tx       TxRunner
	bookings BookingReader
	slots    SlotReader
	ledger   *booking.Ledger
	policy   booking.Policy
	retry    RetryPolicy

	now     func() time.Time
	eventID func() string
}

// BookingOptions configures a BookingService. Zero values fall back to the
// 24h cancellation window, the wall clock and DefaultRetry.
type BookingOptions struct {
	Policy  booking.Policy
	Ledger  *booking.Ledger
	Retry   *RetryPolicy
	Now     func() time.Time
	EventID func() string
}

func NewBookingService(tx TxRunner, bookings BookingReader, slots SlotReader, opts BookingOptions) *BookingService {
	s := &BookingService{
		tx:       tx,
		bookings: bookings,
		slots:    slots,
		ledger:   opts.Ledger,
		policy:   opts.Policy,
		retry:    DefaultRetry,
		now:      opts.Now,
		eventID:  opts.EventID,
	}
	if s.ledger == nil {
		s.ledger = booking.NewLedger()
	}
	if s.policy.CancellationWindow <= 0 {
		s.policy = booking.DefaultPolicy()
	}
	if opts.Retry != nil {
		s.retry = *opts.Retry
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.eventID == nil {
		s.eventID = uuid.NewString
	}
	return s
}

// Create books childID onto slotID for the calling parent. On success the
// booking is confirmed and a booking.confirmed event is queued in the same
// transaction.
func (s *BookingService) Create(ctx context.Context, id authz.Identity, slotID, childID uint64) (model.BookingDetail, error) {
	if err := authz.Authorize(id, authz.CreateBooking); err != nil {
		return model.BookingDetail{}, err
	}
	if slotID == 0 {
		return model.BookingDetail{}, apperr.Invalid("slot_id", "is required")
	}
	if childID == 0 {
		return model.BookingDetail{}, apperr.Invalid("child_id", "is required")
	}

	var out model.BookingDetail
	err := s.ledger.Serialize(ctx, slotID, func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(tx repository.Tx) error {
			slot, err := tx.LockSlot(ctx, slotID)
			if err != nil {
				return err
			}
			child, err := tx.GetChild(ctx, childID)
			if err != nil {
				return err
			}
			if child.ParentID != id.UserID || !child.IsActive {
				return repository.ErrChildNotFound
			}

			now := s.now()
			if err := s.policy.CheckCreate(slot.StartTime, now); err != nil {
				return err
			}
			dup, err := tx.HasConfirmedBooking(ctx, slotID, childID)
			if err != nil {
				return err
			}
			if dup {
				return apperr.ErrDuplicateBooking
			}
			if err := booking.Admit(slot.Capacity(), slot.Confirmed); err != nil {
				return err
			}

			b := model.Booking{
				SlotID:        slotID,
				ChildID:       childID,
				ParentID:      id.UserID,
				Status:        model.BookingConfirmed,
				PaymentMethod: PaymentCredits,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.InsertBooking(ctx, &b); err != nil {
				return err
			}
			if out, err = tx.BookingDetail(ctx, b.ID); err != nil {
				return err
			}
			return s.enqueue(ctx, tx, queue.RoutingBookingConfirmed, out, now)
		})
	})
	if err != nil {
		return model.BookingDetail{}, apperr.Storage(err)
	}
	return out, nil
}

// Cancel moves the caller's confirmed booking to cancelled. It fails with
// apperr.ErrCancellationWindowExpired when the session starts within the
// cancellation window and with apperr.ErrInvalidTransition when the booking
// is already cancelled; in both cases nothing changes.
func (s *BookingService) Cancel(ctx context.Context, id authz.Identity, bookingID uint64) error {
	if err := authz.Authorize(id, authz.CancelBooking); err != nil {
		return err
	}
	current, err := s.Get(ctx, id, bookingID)
	if err != nil {
		return err
	}
	slotID := current.SlotID

	err = s.ledger.Serialize(ctx, slotID, func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(tx repository.Tx) error {
			// Slot before booking, the same order Create takes its locks in.
			slot, err := tx.LockSlot(ctx, slotID)
			if err != nil {
				return err
			}
			b, err := tx.LockBooking(ctx, bookingID)
			if err != nil {
				return err
			}
			if b.ParentID != id.UserID {
				return repository.ErrBookingNotFound
			}
			now := s.now()
			if err := s.policy.CheckCancel(b.Status, slot.StartTime, now); err != nil {
				return err
			}
			if err := tx.SetBookingStatus(ctx, b.ID, model.BookingCancelled, now); err != nil {
				return err
			}
			detail, err := tx.BookingDetail(ctx, b.ID)
			if err != nil {
				return err
			}
			return s.enqueue(ctx, tx, queue.RoutingBookingCancelled, detail, now)
		})
	})
	return apperr.Storage(err)
}

// Get returns one of the caller's bookings.
func (s *BookingService) Get(ctx context.Context, id authz.Identity, bookingID uint64) (model.BookingDetail, error) {
	if err := authz.Authorize(id, authz.ListBookings); err != nil {
		return model.BookingDetail{}, err
	}
	var d model.BookingDetail
	err := s.retry.read(ctx, "get booking", func() error {
		var err error
		d, err = s.bookings.GetForParent(ctx, bookingID, id.UserID)
		return apperr.Storage(err)
	})
	return d, err
}

// ListMine returns the caller's bookings, newest first.
func (s *BookingService) ListMine(ctx context.Context, id authz.Identity) ([]model.BookingDetail, error) {
	if err := authz.Authorize(id, authz.ListBookings); err != nil {
		return nil, err
	}
	var out []model.BookingDetail
	err := s.retry.read(ctx, "list bookings", func() error {
		var err error
		out, err = s.bookings.ListByParent(ctx, id.UserID)
		return apperr.Storage(err)
	})
	return out, err
}

// Roster is a slot together with every booking made on it.
type Roster struct {
	Slot     model.SlotDetail      `json:"slot"`
	Bookings []model.BookingDetail `json:"bookings"`
}

// Roster returns the trainer's view of one slot.
func (s *BookingService) Roster(ctx context.Context, id authz.Identity, slotID uint64) (Roster, error) {
	if err := authz.Authorize(id, authz.ViewRoster); err != nil {
		return Roster{}, err
	}
	var r Roster
	err := s.retry.read(ctx, "slot roster", func() error {
		var err error
		if r.Slot, err = s.slots.GetByID(ctx, slotID); err != nil {
			return apperr.Storage(err)
		}
		r.Bookings, err = s.bookings.ListBySlot(ctx, slotID)
		return apperr.Storage(err)
	})
	return r, err
}

func (s *BookingService) enqueue(ctx context.Context, tx repository.Tx, routingKey string, d model.BookingDetail, at time.Time) error {
	ev := queue.BookingEvent{
		EventID:     s.eventID(),
		Type:        routingKey,
		BookingID:   d.ID,
		SlotID:      d.SlotID,
		ChildID:     d.ChildID,
		ParentID:    d.ParentID,
		ChildName:   strings.TrimSpace(d.Child.FirstName + " " + d.Child.LastName),
		SessionType: d.Slot.SessionType.Name,
		StartsAt:    queue.FormatTime(d.Slot.StartTime),
		EndsAt:      queue.FormatTime(d.Slot.EndTime),
		Status:      string(d.Status),
		OccurredAt:  queue.FormatTime(at),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, &model.OutboxMessage{
		EventID:    ev.EventID,
		RoutingKey: routingKey,
		Payload:    payload,
		CreatedAt:  at,
	})
}
