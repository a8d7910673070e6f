// Package memory is an in-process implementation of store.ScheduleRepository.
// Every transaction holds a single mutex and is rolled back by restoring a
// snapshot when fn returns an error, so it mirrors the constraints of the
// postgres schema closely enough to back the service and transport tests.
// The daemon always runs against postgres.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/store"
)

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	bands    map[uuid.UUID]domain.Band
	bookings map[uuid.UUID]domain.Booking
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:      func() time.Time { return time.Now().UTC() },
		bands:    make(map[uuid.UUID]domain.Band),
		bookings: make(map[uuid.UUID]domain.Booking),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.ScheduleRepository = (*Store)(nil)

type scheduleTx struct {
	s *Store
}

func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bands, bookings := s.snapshot()
	if err := fn(ctx, scheduleTx{s: s}); err != nil {
		s.bands, s.bookings = bands, bookings
		return err
	}
	return nil
}

func (s *Store) InPriestTransaction(ctx context.Context, priestID string, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return s.InTransaction(ctx, fn)
}

func (s *Store) GetBand(ctx context.Context, id uuid.UUID) (domain.Band, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bands[id]
	if !ok {
		return domain.Band{}, store.ErrNotFound
	}
	out := cloneBand(b)
	out.Bookings = s.bandBookings(id)
	return out, nil
}

func (s *Store) ListBands(ctx context.Context, f store.BandFilter) ([]domain.Band, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Band, 0)
	for _, b := range s.bands {
		if !matches(b, f) {
			continue
		}
		c := cloneBand(b)
		if f.WithBookings {
			c.Bookings = s.bandBookings(b.ID)
		}
		out = append(out, c)
	}
	sortBands(out)
	return out, nil
}

func (s *Store) ListFaithfulBookings(ctx context.Context, faithfulID string) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, bk := range s.bookings {
		if bk.FaithfulID != faithfulID {
			continue
		}
		if b, ok := s.bands[bk.BandID]; ok {
			band := cloneBand(b)
			bk.Band = &band
		}
		out = append(out, bk)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t scheduleTx) GetPriestBand(ctx context.Context, priestID string, id uuid.UUID) (domain.Band, error) {
	b, ok := t.s.bands[id]
	if !ok || b.PriestID != priestID {
		return domain.Band{}, store.ErrNotFound
	}
	return cloneBand(b), nil
}

func (t scheduleTx) GetBandForUpdate(ctx context.Context, id uuid.UUID) (domain.Band, error) {
	b, ok := t.s.bands[id]
	if !ok {
		return domain.Band{}, store.ErrNotFound
	}
	return cloneBand(b), nil
}

func (t scheduleTx) ListActiveBands(ctx context.Context, priestID string, window domain.Span) ([]domain.Band, error) {
	out := make([]domain.Band, 0)
	for _, b := range t.s.bands {
		if b.PriestID != priestID || b.Status == domain.BandStatusCancelled {
			continue
		}
		if !b.Span().Overlaps(window) {
			continue
		}
		out = append(out, cloneBand(b))
	}
	sortBands(out)
	return out, nil
}

func (t scheduleTx) InsertBands(ctx context.Context, bands []domain.Band) ([]domain.Band, error) {
	now := t.s.now()
	out := make([]domain.Band, 0, len(bands))
	for _, b := range bands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b = cloneBand(b)
		b.Bookings = nil
		if err := b.Touch(now, true); err != nil {
			return nil, err
		}
		if _, exists := t.s.bands[b.ID]; exists {
			return nil, store.ErrDuplicate
		}
		if err := t.checkBand(b); err != nil {
			return nil, err
		}
		t.s.bands[b.ID] = b
		out = append(out, cloneBand(b))
	}
	return out, nil
}

func (t scheduleTx) UpdateBand(ctx context.Context, band domain.Band) (domain.Band, error) {
	current, ok := t.s.bands[band.ID]
	if !ok {
		return domain.Band{}, store.ErrNotFound
	}
	b := cloneBand(band)
	b.Bookings = nil
	b.PriestID = current.PriestID
	b.CreatedAt = current.CreatedAt
	if err := b.Touch(t.s.now(), false); err != nil {
		return domain.Band{}, err
	}
	if err := t.checkBand(b); err != nil {
		return domain.Band{}, err
	}
	t.s.bands[b.ID] = b
	return cloneBand(b), nil
}

func (t scheduleTx) DeleteBand(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.s.bands[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.bands, id)
	for bid, bk := range t.s.bookings {
		if bk.BandID == id {
			delete(t.s.bookings, bid)
		}
	}
	for cid, c := range t.s.bands {
		if c.ParentBandID != nil && *c.ParentBandID == id {
			c.ParentBandID = nil
			t.s.bands[cid] = c
		}
	}
	return nil
}

func (t scheduleTx) DeleteFutureInstances(ctx context.Context, parentID uuid.UUID, after time.Time) (int, error) {
	var ids []uuid.UUID
	for id, b := range t.s.bands {
		if b.ParentBandID == nil || *b.ParentBandID != parentID {
			continue
		}
		if !b.StartTime.After(after) || b.CurrentBookings > 0 {
			continue
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := t.DeleteBand(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (t scheduleTx) AdjustOccupancy(ctx context.Context, bandID uuid.UUID, delta int) (domain.Band, error) {
	b, ok := t.s.bands[bandID]
	if !ok {
		return domain.Band{}, store.ErrNotFound
	}
	b = cloneBand(b)
	if err := b.AdjustOccupancy(delta); err != nil {
		if errors.Is(err, domain.ErrBandFull) {
			return domain.Band{}, store.ErrCapacityExhausted
		}
		return domain.Band{}, err
	}
	if err := b.Touch(t.s.now(), false); err != nil {
		return domain.Band{}, err
	}
	t.s.bands[bandID] = b
	return cloneBand(b), nil
}

func (t scheduleTx) InsertBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	if _, ok := t.s.bands[booking.BandID]; !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	if booking.Status == domain.BookingStatusBooked {
		if _, err := t.FindActiveBooking(ctx, booking.FaithfulID, booking.BandID); err == nil {
			return domain.Booking{}, store.ErrDuplicate
		}
	}
	booking.Band = nil
	if err := booking.Touch(t.s.now(), true); err != nil {
		return domain.Booking{}, err
	}
	if _, exists := t.s.bookings[booking.ID]; exists {
		return domain.Booking{}, store.ErrDuplicate
	}
	t.s.bookings[booking.ID] = booking
	return booking, nil
}

func (t scheduleTx) FindActiveBooking(ctx context.Context, faithfulID string, bandID uuid.UUID) (domain.Booking, error) {
	for _, bk := range t.s.bookings {
		if bk.FaithfulID == faithfulID && bk.BandID == bandID && bk.Status == domain.BookingStatusBooked {
			return bk, nil
		}
	}
	return domain.Booking{}, store.ErrNotFound
}

func (t scheduleTx) GetFaithfulBooking(ctx context.Context, faithfulID string, id uuid.UUID) (domain.Booking, error) {
	bk, ok := t.s.bookings[id]
	if !ok || bk.FaithfulID != faithfulID {
		return domain.Booking{}, store.ErrNotFound
	}
	return bk, nil
}

func (t scheduleTx) GetBandBooking(ctx context.Context, bandID, id uuid.UUID) (domain.Booking, error) {
	bk, ok := t.s.bookings[id]
	if !ok || bk.BandID != bandID {
		return domain.Booking{}, store.ErrNotFound
	}
	return bk, nil
}

func (t scheduleTx) TransitionBooking(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (domain.Booking, error) {
	bk, ok := t.s.bookings[id]
	if !ok || bk.Status != from {
		return domain.Booking{}, store.ErrNotFound
	}
	if to == domain.BookingStatusBooked {
		if _, err := t.FindActiveBooking(ctx, bk.FaithfulID, bk.BandID); err == nil {
			return domain.Booking{}, store.ErrDuplicate
		}
	}
	bk.Status = to
	if err := bk.Touch(t.s.now(), false); err != nil {
		return domain.Booking{}, err
	}
	t.s.bookings[id] = bk
	return bk, nil
}

// checkBand enforces the table constraints of the postgres schema.
func (t scheduleTx) checkBand(b domain.Band) error {
	if !b.Span().Valid() {
		return errors.New("band start must be before end")
	}
	if b.MaxCapacity < domain.MinBandCapacity || b.MaxCapacity > domain.MaxBandCapacity {
		return errors.New("band capacity out of range")
	}
	if b.CurrentBookings < 0 || b.CurrentBookings > b.MaxCapacity {
		return errors.New("band occupancy out of range")
	}
	if b.Status == domain.BandStatusCancelled {
		return nil
	}
	for id, other := range t.s.bands {
		if id == b.ID || other.PriestID != b.PriestID || other.Status == domain.BandStatusCancelled {
			continue
		}
		if other.Span().Overlaps(b.Span()) {
			return store.ErrConflict
		}
	}
	return nil
}

func (s *Store) bandBookings(bandID uuid.UUID) []domain.Booking {
	out := make([]domain.Booking, 0)
	for _, bk := range s.bookings {
		if bk.BandID == bandID {
			out = append(out, bk)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *Store) snapshot() (map[uuid.UUID]domain.Band, map[uuid.UUID]domain.Booking) {
	bands := make(map[uuid.UUID]domain.Band, len(s.bands))
	for id, b := range s.bands {
		bands[id] = cloneBand(b)
	}
	bookings := make(map[uuid.UUID]domain.Booking, len(s.bookings))
	for id, bk := range s.bookings {
		bookings[id] = bk
	}
	return bands, bookings
}

func matches(b domain.Band, f store.BandFilter) bool {
	if f.PriestID != "" && b.PriestID != f.PriestID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.ParishID != nil && (b.ParishID == nil || *b.ParishID != *f.ParishID) {
		return false
	}
	if f.From != nil && b.StartTime.Before(*f.From) {
		return false
	}
	if f.To != nil && b.StartTime.After(*f.To) {
		return false
	}
	if f.StartsAfter != nil && !b.StartTime.After(*f.StartsAfter) {
		return false
	}
	if f.WithCapacity && !b.HasCapacity() {
		return false
	}
	return true
}

func sortBands(bands []domain.Band) {
	sort.Slice(bands, func(i, j int) bool {
		if !bands[i].StartTime.Equal(bands[j].StartTime) {
			return bands[i].StartTime.Before(bands[j].StartTime)
		}
		return bands[i].ID.String() < bands[j].ID.String()
	})
}

func cloneBand(b domain.Band) domain.Band {
	if b.RecurrenceDays != nil {
		b.RecurrenceDays = append([]int16(nil), b.RecurrenceDays...)
	}
	if b.ParishID != nil {
		v := *b.ParishID
		b.ParishID = &v
	}
	if b.RecurrenceEndDate != nil {
		v := *b.RecurrenceEndDate
		b.RecurrenceEndDate = &v
	}
	if b.ParentBandID != nil {
		v := *b.ParentBandID
		b.ParentBandID = &v
	}
	if b.Bookings != nil {
		b.Bookings = append([]domain.Booking(nil), b.Bookings...)
	}
	return b
}
