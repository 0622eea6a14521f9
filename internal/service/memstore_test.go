package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/repository"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")

// memStore is an in-memory stand-in for repository.Store. A transaction
// holds the store mutex for its whole duration and restores a snapshot when
// it fails, so a rejected operation leaves no trace.
type memStore struct {
	mu sync.Mutex

	types    map[uint64]model.SessionType
	slots    map[uint64]model.Slot
	children map[uint64]model.Child
	bookings map[uint64]model.Booking
	outbox   []model.OutboxMessage
	nextID   uint64

	failReads int   // next n reads fail with errConnRefused
	failTx    error // next InTx fails with this error before running fn
	reads     int
	txCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		types:    map[uint64]model.SessionType{},
		slots:    map[uint64]model.Slot{},
		children: map[uint64]model.Child{},
		bookings: map[uint64]model.Booking{},
	}
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addType(st model.SessionType) model.SessionType {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = s.id()
	s.types[st.ID] = st
	return st
}

func (s *memStore) addSlot(typeID uint64, start time.Time) model.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.types[typeID]
	sl := model.Slot{ID: s.id(), SessionTypeID: typeID, StartTime: start, EndTime: start.Add(st.Duration())}
	s.slots[sl.ID] = sl
	return sl
}

func (s *memStore) addChild(parentID uint64, first string) model.Child {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Child{ID: s.id(), ParentID: parentID, FirstName: first, LastName: "Test", IsActive: true}
	s.children[c.ID] = c
	return c
}

func (s *memStore) booking(id uint64) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memStore) events() []model.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxMessage(nil), s.outbox...)
}

func (s *memStore) counts() (reads, txCalls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.txCalls
}

// read must be called with mu held.
func (s *memStore) read() error {
	s.reads++
	if s.failReads > 0 {
		s.failReads--
		return errConnRefused
	}
	return nil
}

func (s *memStore) confirmed(slotID uint64) int {
	n := 0
	for _, b := range s.bookings {
		if b.SlotID == slotID && b.Status == model.BookingConfirmed {
			n++
		}
	}
	return n
}

func (s *memStore) slotDetail(id uint64) (model.SlotDetail, error) {
	sl, ok := s.slots[id]
	if !ok {
		return model.SlotDetail{}, repository.ErrSlotNotFound
	}
	d := model.SlotDetail{Slot: sl, SessionType: s.types[sl.SessionTypeID], Confirmed: s.confirmed(id)}
	d.Remaining = d.Capacity() - d.Confirmed
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

func (s *memStore) bookingDetail(id uint64) (model.BookingDetail, error) {
	b, ok := s.bookings[id]
	if !ok {
		return model.BookingDetail{}, repository.ErrBookingNotFound
	}
	c := s.children[b.ChildID]
	sl := s.slots[b.SlotID]
	st := s.types[sl.SessionTypeID]
	return model.BookingDetail{
		Booking: b,
		Child:   model.ChildSummary{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName},
		Slot: model.SlotSummary{
			ID: sl.ID, StartTime: sl.StartTime, EndTime: sl.EndTime,
			SessionType: model.SessionTypeSummary{ID: st.ID, Name: st.Name, DurationMinutes: st.DurationMinutes},
		},
	}, nil
}

type memSnapshot struct {
	slots    map[uint64]model.Slot
	bookings map[uint64]model.Booking
	outbox   []model.OutboxMessage
	nextID   uint64
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		slots:    make(map[uint64]model.Slot, len(s.slots)),
		bookings: make(map[uint64]model.Booking, len(s.bookings)),
		outbox:   append([]model.OutboxMessage(nil), s.outbox...),
		nextID:   s.nextID,
	}
	for k, v := range s.slots {
		snap.slots[k] = v
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.slots = snap.slots
	s.bookings = snap.bookings
	s.outbox = snap.outbox
	s.nextID = snap.nextID
}

func (s *memStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCalls++
	if s.failTx != nil {
		err := s.failTx
		s.failTx = nil
		return err
	}
	snap := s.snapshot()
	if err := fn(memTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// memTx runs with the store mutex already held.
type memTx struct{ s *memStore }

func (t memTx) LockSlot(ctx context.Context, slotID uint64) (model.SlotDetail, error) {
	return t.s.slotDetail(slotID)
}

func (t memTx) InsertSlot(ctx context.Context, sl *model.Slot) (bool, error) {
	for _, existing := range t.s.slots {
		if existing.SessionTypeID == sl.SessionTypeID && existing.StartTime.Equal(sl.StartTime) {
			return false, nil
		}
	}
	sl.ID = t.s.id()
	t.s.slots[sl.ID] = *sl
	return true, nil
}

func (t memTx) DeleteSlot(ctx context.Context, slotID uint64) error {
	for id, b := range t.s.bookings {
		if b.SlotID == slotID {
			delete(t.s.bookings, id)
		}
	}
	delete(t.s.slots, slotID)
	return nil
}

func (t memTx) GetChild(ctx context.Context, childID uint64) (model.Child, error) {
	c, ok := t.s.children[childID]
	if !ok {
		return model.Child{}, repository.ErrChildNotFound
	}
	return c, nil
}

func (t memTx) HasConfirmedBooking(ctx context.Context, slotID, childID uint64) (bool, error) {
	for _, b := range t.s.bookings {
		if b.SlotID == slotID && b.ChildID == childID && b.Status == model.BookingConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (t memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	if ok, _ := t.HasConfirmedBooking(ctx, b.SlotID, b.ChildID); ok {
		return apperr.ErrDuplicateBooking
	}
	b.ID = t.s.id()
	t.s.bookings[b.ID] = *b
	return nil
}

func (t memTx) LockBooking(ctx context.Context, bookingID uint64) (model.Booking, error) {
	b, ok := t.s.bookings[bookingID]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return b, nil
}

func (t memTx) SetBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus, at time.Time) error {
	b := t.s.bookings[bookingID]
	b.Status = status
	b.UpdatedAt = at
	t.s.bookings[bookingID] = b
	return nil
}

func (t memTx) BookingDetail(ctx context.Context, bookingID uint64) (model.BookingDetail, error) {
	return t.s.bookingDetail(bookingID)
}

func (t memTx) Enqueue(ctx context.Context, m *model.OutboxMessage) error {
	m.ID = t.s.id()
	t.s.outbox = append(t.s.outbox, *m)
	return nil
}

type memTypes struct{ s *memStore }

func (r memTypes) GetByID(ctx context.Context, id uint64) (model.SessionType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.read(); err != nil {
		return model.SessionType{}, err
	}
	st, ok := r.s.types[id]
	if !ok {
		return model.SessionType{}, repository.ErrSessionTypeNotFound
	}
	return st, nil
}

func (r memTypes) List(ctx context.Context, activeOnly bool) ([]model.SessionType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.read(); err != nil {
		return nil, err
	}
	out := make([]model.SessionType, 0, len(r.s.types))
	for _, st := range r.s.types {
		if activeOnly && !st.IsActive {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTypes) Create(ctx context.Context, st *model.SessionType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st.ID = r.s.id()
	r.s.types[st.ID] = *st
	return nil
}

func (r memTypes) Update(ctx context.Context, st *model.SessionType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.types[st.ID]; !ok {
		return repository.ErrSessionTypeNotFound
	}
	r.s.types[st.ID] = *st
	return nil
}

func (r memTypes) Deactivate(ctx context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.types[id]
	if !ok {
		return repository.ErrSessionTypeNotFound
	}
	st.IsActive = false
	r.s.types[id] = st
	return nil
}

type memSlots struct{ s *memStore }

func (r memSlots) GetByID(ctx context.Context, id uint64) (model.SlotDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.read(); err != nil {
		return model.SlotDetail{}, err
	}
	return r.s.slotDetail(id)
}

func (r memSlots) List(ctx context.Context, f repository.SlotFilter) ([]model.SlotDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.read(); err != nil {
		return nil, err
	}
	out := make([]model.SlotDetail, 0)
	for id, sl := range r.s.slots {
		if !f.From.IsZero() && sl.StartTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !sl.StartTime.Before(f.To) {
			continue
		}
		if f.SessionTypeID != 0 && sl.SessionTypeID != f.SessionTypeID {
			continue
		}
		d, _ := r.s.slotDetail(id)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memBookings struct{ s *memStore }

func (r memBookings) list(keep func(model.Booking) bool) []model.BookingDetail {
	out := make([]model.BookingDetail, 0)
	for id, b := range r.s.bookings {
		if keep(b) {
			d, _ := r.s.bookingDetail(id)
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r memBookings) ListByParent(ctx context.Context, parentID uint64) ([]model.BookingDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.read(); err != nil {
		return nil, err
	}
	return r.list(func(b model.Booking) bool { return b.ParentID == parentID }), nil
}

func (r memBookings) ListBySlot(ctx context.Context, slotID uint64) ([]model.BookingDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.read(); err != nil {
		return nil, err
	}
	return r.list(func(b model.Booking) bool { return b.SlotID == slotID }), nil
}

func (r memBookings) GetForParent(ctx context.Context, id, parentID uint64) (model.BookingDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.read(); err != nil {
		return model.BookingDetail{}, err
	}
	b, ok := r.s.bookings[id]
	if !ok || b.ParentID != parentID {
		return model.BookingDetail{}, repository.ErrBookingNotFound
	}
	return r.s.bookingDetail(id)
}

type memChildren struct{ s *memStore }

func (r memChildren) ListByParent(ctx context.Context, parentID uint64) ([]model.Child, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Child, 0)
	for _, c := range r.s.children {
		if c.ParentID == parentID && c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstName < out[j].FirstName })
	return out, nil
}

func (r memChildren) GetForParent(ctx context.Context, id, parentID uint64) (model.Child, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[id]
	if !ok || c.ParentID != parentID || !c.IsActive {
		return model.Child{}, repository.ErrChildNotFound
	}
	return c, nil
}

func (r memChildren) Create(ctx context.Context, c *model.Child) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.id()
	r.s.children[c.ID] = *c
	return nil
}

func (r memChildren) Update(ctx context.Context, c *model.Child) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.children[c.ID] = *c
	return nil
}

func (r memChildren) Deactivate(ctx context.Context, id, parentID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[id]
	if !ok || c.ParentID != parentID || !c.IsActive {
		return repository.ErrChildNotFound
	}
	c.IsActive = false
	r.s.children[id] = c
	return nil
}
