package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/store"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newBand(priestID string, start time.Time, capacity int) domain.Band {
	return domain.Band{
		PriestID:       priestID,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Status:         domain.BandStatusAvailable,
		MaxCapacity:    capacity,
		RecurrenceType: domain.RecurrenceNone,
	}
}

func insertBand(t *testing.T, s *Store, b domain.Band) domain.Band {
	t.Helper()
	var out domain.Band
	err := s.InTransaction(context.Background(), func(ctx context.Context, tx store.ScheduleTx) error {
		rows, err := tx.InsertBands(ctx, []domain.Band{b})
		if err != nil {
			return err
		}
		out = rows[0]
		return nil
	})
	if err != nil {
		t.Fatalf("InsertBands error: %v", err)
	}
	return out
}

func TestStore_RollbackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		if _, err := tx.InsertBands(ctx, []domain.Band{newBand("p1", base, 1)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	rows, err := s.ListBands(ctx, store.BandFilter{PriestID: "p1"})
	if err != nil {
		t.Fatalf("ListBands error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("len(rows) = %d, want 0 after rollback", len(rows))
	}
}

func TestStore_OverlapConstraint(t *testing.T) {
	s := New()
	ctx := context.Background()
	insertBand(t, s, newBand("p1", base, 1))

	err := s.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		_, err := tx.InsertBands(ctx, []domain.Band{newBand("p1", base.Add(30*time.Minute), 1)})
		return err
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("overlap err = %v, want %v", err, store.ErrConflict)
	}

	insertBand(t, s, newBand("p1", base.Add(time.Hour), 1))
	insertBand(t, s, newBand("p2", base, 1))

	cancelled := newBand("p1", base.Add(15*time.Minute), 1)
	cancelled.Status = domain.BandStatusCancelled
	insertBand(t, s, cancelled)
}

func TestStore_AdjustOccupancyIsConditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := insertBand(t, s, newBand("p1", base, 1))

	err := s.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		got, err := tx.AdjustOccupancy(ctx, b.ID, 1)
		if err != nil {
			return err
		}
		if got.Status != domain.BandStatusFull {
			t.Fatalf("status = %s, want full", got.Status)
		}
		_, err = tx.AdjustOccupancy(ctx, b.ID, 1)
		return err
	})
	if !errors.Is(err, store.ErrCapacityExhausted) {
		t.Fatalf("err = %v, want %v", err, store.ErrCapacityExhausted)
	}

	got, err := s.GetBand(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBand error: %v", err)
	}
	if got.CurrentBookings != 0 {
		t.Fatalf("CurrentBookings = %d, want 0 after rollback", got.CurrentBookings)
	}
}

func TestStore_DeleteBandDetachesInstancesAndDropsBookings(t *testing.T) {
	s := New()
	ctx := context.Background()
	parent := insertBand(t, s, newBand("p1", base, 2))

	child := newBand("p1", base.Add(24*time.Hour), 2)
	child.ParentBandID = &parent.ID
	child = insertBand(t, s, child)

	err := s.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		if _, err := tx.InsertBooking(ctx, domain.Booking{
			FaithfulID:    "f1",
			BandID:        parent.ID,
			Status:        domain.BookingStatusCancelled,
			ScheduledTime: parent.StartTime,
		}); err != nil {
			return err
		}
		return tx.DeleteBand(ctx, parent.ID)
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}

	got, err := s.GetBand(ctx, child.ID)
	if err != nil {
		t.Fatalf("GetBand error: %v", err)
	}
	if got.ParentBandID != nil {
		t.Fatalf("ParentBandID = %v, want nil", got.ParentBandID)
	}
	bookings, err := s.ListFaithfulBookings(ctx, "f1")
	if err != nil {
		t.Fatalf("ListFaithfulBookings error: %v", err)
	}
	if len(bookings) != 0 {
		t.Fatalf("len(bookings) = %d, want 0", len(bookings))
	}
}

func TestStore_OneActiveBookingPerFaithful(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := insertBand(t, s, newBand("p1", base, 3))

	var first domain.Booking
	err := s.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		var err error
		first, err = tx.InsertBooking(ctx, domain.Booking{
			FaithfulID:    "f1",
			BandID:        b.ID,
			Status:        domain.BookingStatusBooked,
			ScheduledTime: b.StartTime,
		})
		return err
	})
	if err != nil {
		t.Fatalf("InsertBooking error: %v", err)
	}

	err = s.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		_, err := tx.InsertBooking(ctx, domain.Booking{
			FaithfulID:    "f1",
			BandID:        b.ID,
			Status:        domain.BookingStatusBooked,
			ScheduledTime: b.StartTime,
		})
		return err
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate err = %v, want %v", err, store.ErrDuplicate)
	}

	err = s.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		if _, err := tx.TransitionBooking(ctx, first.ID, domain.BookingStatusBooked, domain.BookingStatusCancelled); err != nil {
			return err
		}
		_, err := tx.TransitionBooking(ctx, first.ID, domain.BookingStatusBooked, domain.BookingStatusCancelled)
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("second transition err = %v, want %v", err, store.ErrNotFound)
		}
		_, err = tx.InsertBooking(ctx, domain.Booking{
			FaithfulID:    "f1",
			BandID:        b.ID,
			Status:        domain.BookingStatusBooked,
			ScheduledTime: b.StartTime,
		})
		return err
	})
	if err != nil {
		t.Fatalf("rebook after cancel error: %v", err)
	}
}

func TestStore_ListBandsFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	parish := "parish-1"

	a := newBand("p1", base, 1)
	a.ParishID = &parish
	a = insertBand(t, s, a)
	full := insertBand(t, s, newBand("p1", base.Add(2*time.Hour), 1))
	insertBand(t, s, newBand("p2", base.Add(48*time.Hour), 1))

	err := s.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		_, err := tx.AdjustOccupancy(ctx, full.ID, 1)
		return err
	})
	if err != nil {
		t.Fatalf("AdjustOccupancy error: %v", err)
	}

	rows, err := s.ListBands(ctx, store.BandFilter{Status: domain.BandStatusAvailable, WithCapacity: true})
	if err != nil {
		t.Fatalf("ListBands error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].ID != a.ID {
		t.Fatalf("rows[0] = %s, want %s (ordered by start)", rows[0].ID, a.ID)
	}

	rows, err = s.ListBands(ctx, store.BandFilter{ParishID: &parish})
	if err != nil {
		t.Fatalf("ListBands error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != a.ID {
		t.Fatalf("parish filter returned %d rows", len(rows))
	}

	to := base.Add(time.Hour)
	rows, err = s.ListBands(ctx, store.BandFilter{To: &to})
	if err != nil {
		t.Fatalf("ListBands error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}

	if _, err := s.GetBand(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetBand err = %v, want %v", err, store.ErrNotFound)
	}
}
