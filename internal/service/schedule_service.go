package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/repository"
	"github.com/iliyamo/podium-scheduler/internal/schedule"
)

// ScheduleService manages session types and slots on behalf of the trainer
// and serves the public schedule.
type ScheduleService struct {
	tx    TxRunner
	types SessionTypeStore
	slots SlotReader

	loc          *time.Location
	defaultWeeks int
	retry        RetryPolicy
}

// ScheduleOptions configures a ScheduleService. Zero values fall back to
// UTC, schedule.DefaultWeeks and DefaultRetry.
type ScheduleOptions struct {
	Location     *time.Location
	DefaultWeeks int
	Retry        *RetryPolicy
}

func NewScheduleService(tx TxRunner, types SessionTypeStore, slots SlotReader, opts ScheduleOptions) *ScheduleService {
	s := &ScheduleService{tx: tx, types: types, slots: slots, loc: opts.Location, defaultWeeks: opts.DefaultWeeks, retry: DefaultRetry}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.defaultWeeks < 1 || s.defaultWeeks > schedule.MaxWeeks {
		s.defaultWeeks = schedule.DefaultWeeks
	}
	if opts.Retry != nil {
		s.retry = *opts.Retry
	}
	return s
}

// Location is the zone dates and times of day are interpreted in.
func (s *ScheduleService) Location() *time.Location { return s.loc }

// CreateSlotsInput is a trainer's slot creation request.
type CreateSlotsInput struct {
	SessionTypeID uint64
	StartDate     string // YYYY-MM-DD
	StartTime     string // HH:MM
	Recurrence    string // single | weekly
	Weekdays      []int  // 0 = Sunday
	Weeks         int
}

// CreateSlotsResult lists the slots written. Skipped counts generated slots
// that already existed for the same session type and start time.
type CreateSlotsResult struct {
	Items   []model.Slot
	Skipped int
}

// CreateSlots expands the request and persists every generated slot in one
// transaction.
func (s *ScheduleService) CreateSlots(ctx context.Context, id authz.Identity, in CreateSlotsInput) (CreateSlotsResult, error) {
	if err := authz.Authorize(id, authz.CreateSlot); err != nil {
		return CreateSlotsResult{}, err
	}
	if in.SessionTypeID == 0 {
		return CreateSlotsResult{}, apperr.Invalid("session_type_id", "is required")
	}
	date, err := schedule.ParseDate(in.StartDate)
	if err != nil {
		return CreateSlotsResult{}, err
	}
	clock, err := schedule.ParseClock(in.StartTime)
	if err != nil {
		return CreateSlotsResult{}, err
	}
	rec := schedule.Recurrence{Kind: schedule.Kind(strings.ToLower(strings.TrimSpace(in.Recurrence))), Weeks: in.Weeks}
	if rec.Kind == schedule.KindWeekly {
		if rec.Weekdays, err = schedule.ParseWeekdays(in.Weekdays); err != nil {
			return CreateSlotsResult{}, err
		}
		if rec.Weeks == 0 {
			rec.Weeks = s.defaultWeeks
		}
	}

	st, err := s.getSessionType(ctx, in.SessionTypeID)
	if err != nil {
		return CreateSlotsResult{}, err
	}
	if !st.IsActive {
		return CreateSlotsResult{}, apperr.Invalid("session_type_id", "session type is inactive")
	}

	slots, err := schedule.Generate(schedule.Request{
		SessionType: st,
		StartDate:   date,
		StartTime:   clock,
		Recurrence:  rec,
		Location:    s.loc,
	})
	if err != nil {
		return CreateSlotsResult{}, err
	}

	var res CreateSlotsResult
	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		res = CreateSlotsResult{Items: make([]model.Slot, 0, len(slots))}
		for i := range slots {
			inserted, err := tx.InsertSlot(ctx, &slots[i])
			if err != nil {
				return err
			}
			if !inserted {
				res.Skipped++
				continue
			}
			res.Items = append(res.Items, slots[i])
		}
		return nil
	})
	if err != nil {
		return CreateSlotsResult{}, apperr.Storage(err)
	}
	return res, nil
}

// ListSlotsQuery filters the public schedule. Dates are calendar dates in
// the deployment zone; EndDate is inclusive.
type ListSlotsQuery struct {
	StartDate     string
	EndDate       string
	SessionTypeID uint64
}

// ListSlots returns slots ordered by start time with their session type and
// remaining capacity.
func (s *ScheduleService) ListSlots(ctx context.Context, q ListSlotsQuery) ([]model.SlotDetail, error) {
	var f repository.SlotFilter
	var from, to schedule.Date
	var err error
	if q.StartDate != "" {
		if from, err = schedule.ParseDate(q.StartDate); err != nil {
			return nil, apperr.Invalid("start_date", "expected YYYY-MM-DD")
		}
		f.From = time.Date(from.Year, from.Month, from.Day, 0, 0, 0, 0, s.loc)
	}
	if q.EndDate != "" {
		if to, err = schedule.ParseDate(q.EndDate); err != nil {
			return nil, apperr.Invalid("end_date", "expected YYYY-MM-DD")
		}
		next := to.AddDays(1)
		f.To = time.Date(next.Year, next.Month, next.Day, 0, 0, 0, 0, s.loc)
	}
	if !f.From.IsZero() && !f.To.IsZero() && to.Before(from) {
		return nil, apperr.Invalid("end_date", "must not be before start_date")
	}
	f.SessionTypeID = q.SessionTypeID

	var out []model.SlotDetail
	err = s.retry.read(ctx, "list slots", func() error {
		var err error
		out, err = s.slots.List(ctx, f)
		return apperr.Storage(err)
	})
	return out, err
}

// GetSlot returns one slot with its session type and remaining capacity.
func (s *ScheduleService) GetSlot(ctx context.Context, slotID uint64) (model.SlotDetail, error) {
	var d model.SlotDetail
	err := s.retry.read(ctx, "get slot", func() error {
		var err error
		d, err = s.slots.GetByID(ctx, slotID)
		return apperr.Storage(err)
	})
	return d, err
}

// DeleteSlot removes a slot that has no confirmed bookings.
func (s *ScheduleService) DeleteSlot(ctx context.Context, id authz.Identity, slotID uint64) error {
	if err := authz.Authorize(id, authz.DeleteSlot); err != nil {
		return err
	}
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		slot, err := tx.LockSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.Confirmed > 0 {
			return apperr.ErrSlotHasBookings
		}
		return tx.DeleteSlot(ctx, slotID)
	})
	return apperr.Storage(err)
}

func (s *ScheduleService) getSessionType(ctx context.Context, id uint64) (model.SessionType, error) {
	var st model.SessionType
	err := s.retry.read(ctx, "get session type", func() error {
		var err error
		st, err = s.types.GetByID(ctx, id)
		return apperr.Storage(err)
	})
	return st, err
}

// ListSessionTypes returns active session types. A trainer may ask for the
// retired ones as well.
func (s *ScheduleService) ListSessionTypes(ctx context.Context, id authz.Identity, includeInactive bool) ([]model.SessionType, error) {
	if includeInactive {
		if err := authz.Authorize(id, authz.UpdateSessionType); err != nil {
			return nil, err
		}
	}
	var out []model.SessionType
	err := s.retry.read(ctx, "list session types", func() error {
		var err error
		out, err = s.types.List(ctx, !includeInactive)
		return apperr.Storage(err)
	})
	return out, err
}

// SessionTypeInput carries the editable fields of a session type. Nil
// pointers keep the current value on update and take the default on create.
type SessionTypeInput struct {
	Name            string
	Description     *string
	DurationMinutes int
	MaxParticipants int
	Credits         *int
	Price           *decimal.Decimal
	IsActive        *bool
}

func (in SessionTypeInput) apply(st *model.SessionType) error {
	st.Name = strings.TrimSpace(in.Name)
	if st.Name == "" {
		return apperr.Invalid("name", "is required")
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		st.Description = &d
		if d == "" {
			st.Description = nil
		}
	}
	if in.DurationMinutes <= 0 {
		return apperr.Invalid("duration_minutes", "must be positive")
	}
	st.DurationMinutes = in.DurationMinutes
	if in.MaxParticipants <= 0 {
		return apperr.Invalid("max_participants", "must be positive")
	}
	st.MaxParticipants = in.MaxParticipants
	if in.Credits != nil {
		if *in.Credits < 0 {
			return apperr.Invalid("credits", "must not be negative")
		}
		st.Credits = *in.Credits
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return apperr.Invalid("price", "must not be negative")
		}
		st.Price = in.Price.Round(2)
	}
	if in.IsActive != nil {
		st.IsActive = *in.IsActive
	}
	return nil
}

// CreateSessionType adds a bookable session type.
func (s *ScheduleService) CreateSessionType(ctx context.Context, id authz.Identity, in SessionTypeInput) (model.SessionType, error) {
	if err := authz.Authorize(id, authz.CreateSessionType); err != nil {
		return model.SessionType{}, err
	}
	st := model.SessionType{Credits: 1, Price: decimal.Zero, IsActive: true}
	if err := in.apply(&st); err != nil {
		return model.SessionType{}, err
	}
	if err := s.types.Create(ctx, &st); err != nil {
		return model.SessionType{}, apperr.Storage(err)
	}
	return st, nil
}

// UpdateSessionType edits a session type. Existing slots keep the end time
// they were created with.
func (s *ScheduleService) UpdateSessionType(ctx context.Context, id authz.Identity, typeID uint64, in SessionTypeInput) (model.SessionType, error) {
	if err := authz.Authorize(id, authz.UpdateSessionType); err != nil {
		return model.SessionType{}, err
	}
	st, err := s.getSessionType(ctx, typeID)
	if err != nil {
		return model.SessionType{}, err
	}
	if err := in.apply(&st); err != nil {
		return model.SessionType{}, err
	}
	if err := s.types.Update(ctx, &st); err != nil {
		return model.SessionType{}, apperr.Storage(err)
	}
	return st, nil
}

// DeactivateSessionType retires a session type. Its slots remain valid.
func (s *ScheduleService) DeactivateSessionType(ctx context.Context, id authz.Identity, typeID uint64) error {
	if err := authz.Authorize(id, authz.DeleteSessionType); err != nil {
		return err
	}
	return apperr.Storage(s.types.Deactivate(ctx, typeID))
}
