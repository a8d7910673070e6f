package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BandStatus string

const (
	BandStatusAvailable BandStatus = "available"
	BandStatusFull      BandStatus = "full"
	BandStatusCancelled BandStatus = "cancelled"
)

func (s BandStatus) Valid() bool {
	switch s {
	case BandStatusAvailable, BandStatusFull, BandStatusCancelled:
		return true
	}
	return false
}

const (
	MinBandCapacity     = 1
	MaxBandCapacity     = 50
	DefaultBandCapacity = 1
)

var ErrBandFull = errors.New("band is full")

// Band is a priest's availability window. Bookings is only populated when
// the band is loaded together with its reservations.
type Band struct {
	bun.BaseModel `bun:"table:bands,alias:band"`

	ID                uuid.UUID      `bun:"id,pk,type:uuid"`
	PriestID          string         `bun:"priest_id,notnull"`
	StartTime         time.Time      `bun:"start_time,notnull"`
	EndTime           time.Time      `bun:"end_time,notnull"`
	Status            BandStatus     `bun:"status,notnull"`
	Location          string         `bun:"location,notnull"`
	Notes             string         `bun:"notes,notnull"`
	MaxCapacity       int            `bun:"max_capacity,notnull"`
	CurrentBookings   int            `bun:"current_bookings,notnull"`
	ParishID          *string        `bun:"parish_id"`
	IsRecurrent       bool           `bun:"is_recurrent,notnull"`
	RecurrenceType    RecurrenceType `bun:"recurrence_type,notnull"`
	RecurrenceDays    []int16        `bun:"recurrence_days,array"`
	RecurrenceEndDate *time.Time     `bun:"recurrence_end_date"`
	ParentBandID      *uuid.UUID     `bun:"parent_band_id,type:uuid"`
	CreatedAt         time.Time      `bun:"created_at,notnull"`
	UpdatedAt         time.Time      `bun:"updated_at,notnull"`

	Bookings []Booking `bun:"rel:has-many,join:id=band_id"`
}

func (b *Band) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		return b.Touch(time.Now().UTC(), true)
	case *bun.UpdateQuery:
		return b.Touch(time.Now().UTC(), false)
	}
	return nil
}

// Touch assigns an id on first insert and maintains the audit timestamps.
func (b *Band) Touch(now time.Time, insert bool) error {
	return touch(&b.ID, &b.CreatedAt, &b.UpdatedAt, now, insert)
}

func (b Band) Span() Span {
	return Span{Start: b.StartTime, End: b.EndTime}
}

func (b Band) IsInstance() bool {
	return b.ParentBandID != nil
}

func (b Band) IsSeriesParent() bool {
	return b.ParentBandID == nil && b.IsRecurrent && b.RecurrenceType != RecurrenceNone
}

func (b Band) HasBookings() bool {
	return b.CurrentBookings > 0
}

func (b Band) HasCapacity() bool {
	return b.CurrentBookings < b.MaxCapacity
}

// AdjustOccupancy moves current bookings by delta and re-derives the status.
// Growing past capacity fails with ErrBandFull; shrinking is clamped at zero.
func (b *Band) AdjustOccupancy(delta int) error {
	next := b.CurrentBookings + delta
	if delta > 0 && next > b.MaxCapacity {
		return ErrBandFull
	}
	if next < 0 {
		next = 0
	}
	b.CurrentBookings = next
	b.RefreshStatus()
	return nil
}

// RefreshStatus projects occupancy onto the status. Cancelled bands stay
// cancelled until a priest reactivates them.
func (b *Band) RefreshStatus() {
	if b.Status == BandStatusCancelled {
		return
	}
	if b.CurrentBookings >= b.MaxCapacity {
		b.Status = BandStatusFull
		return
	}
	b.Status = BandStatusAvailable
}

func touch(id *uuid.UUID, createdAt, updatedAt *time.Time, now time.Time, insert bool) error {
	if !insert {
		*updatedAt = now
		return nil
	}
	if *id == uuid.Nil {
		v, err := uuid.NewV7()
		if err != nil {
			return err
		}
		*id = v
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
	return nil
}
