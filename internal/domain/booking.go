package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusBooked, BookingStatusCancelled, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusNoShow:
		return true
	}
	return false
}

// CancellationNotice is the minimum time left before the scheduled instant
// for a faithful to cancel their own booking.
const CancellationNotice = 2 * time.Hour

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:booking"`

	ID               uuid.UUID     `bun:"id,pk,type:uuid"`
	FaithfulID       string        `bun:"faithful_id,notnull"`
	BandID           uuid.UUID     `bun:"band_id,notnull,type:uuid"`
	Status           BookingStatus `bun:"status,notnull"`
	ScheduledTime    time.Time     `bun:"scheduled_time,notnull"`
	Notes            string        `bun:"notes,notnull"`
	PreparationNotes string        `bun:"preparation_notes,notnull"`
	CreatedAt        time.Time     `bun:"created_at,notnull"`
	UpdatedAt        time.Time     `bun:"updated_at,notnull"`

	Band *Band `bun:"rel:belongs-to,join:band_id=id"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		return b.Touch(time.Now().UTC(), true)
	case *bun.UpdateQuery:
		return b.Touch(time.Now().UTC(), false)
	}
	return nil
}

func (b *Booking) Touch(now time.Time, insert bool) error {
	return touch(&b.ID, &b.CreatedAt, &b.UpdatedAt, now, insert)
}

func (b Booking) IsActive() bool {
	return b.Status == BookingStatusBooked
}

// CanCancel reports whether at least CancellationNotice remains before the
// scheduled instant. Exactly two hours ahead still qualifies.
func (b Booking) CanCancel(now time.Time) bool {
	return b.ScheduledTime.Sub(now) >= CancellationNotice
}
