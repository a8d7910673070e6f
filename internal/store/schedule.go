package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"confesapp/backend/internal/domain"
)

// BandFilter narrows band listings. Zero values mean "no constraint". From
// and To bound the band's start time inclusively and independently.
type BandFilter struct {
	PriestID    string
	Status      domain.BandStatus
	ParishID    *string
	From        *time.Time
	To          *time.Time
	StartsAfter *time.Time
	// WithCapacity keeps only bands with at least one free seat.
	WithCapacity bool
	// WithBookings loads each band's bookings.
	WithBookings bool
}

type ScheduleRepository interface {
	// InPriestTransaction runs fn in a transaction that serializes band
	// writes for one priest.
	InPriestTransaction(ctx context.Context, priestID string, fn func(ctx context.Context, tx ScheduleTx) error) error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx ScheduleTx) error) error

	GetBand(ctx context.Context, id uuid.UUID) (domain.Band, error)
	ListBands(ctx context.Context, f BandFilter) ([]domain.Band, error)
	ListFaithfulBookings(ctx context.Context, faithfulID string) ([]domain.Booking, error)
}

type ScheduleTx interface {
	// GetPriestBand returns the band only when owned by priestID, locking it
	// for the rest of the transaction.
	GetPriestBand(ctx context.Context, priestID string, id uuid.UUID) (domain.Band, error)
	GetBandForUpdate(ctx context.Context, id uuid.UUID) (domain.Band, error)
	// ListActiveBands returns the priest's non-cancelled bands intersecting window.
	ListActiveBands(ctx context.Context, priestID string, window domain.Span) ([]domain.Band, error)
	InsertBands(ctx context.Context, bands []domain.Band) ([]domain.Band, error)
	UpdateBand(ctx context.Context, band domain.Band) (domain.Band, error)
	DeleteBand(ctx context.Context, id uuid.UUID) error
	// DeleteFutureInstances removes the unbooked instances of a series that
	// start after the given instant and reports how many were removed.
	DeleteFutureInstances(ctx context.Context, parentID uuid.UUID, after time.Time) (int, error)
	// AdjustOccupancy applies delta to current bookings only while the result
	// stays within capacity, re-deriving the band status in the same write.
	AdjustOccupancy(ctx context.Context, bandID uuid.UUID, delta int) (domain.Band, error)

	InsertBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	FindActiveBooking(ctx context.Context, faithfulID string, bandID uuid.UUID) (domain.Booking, error)
	GetFaithfulBooking(ctx context.Context, faithfulID string, id uuid.UUID) (domain.Booking, error)
	GetBandBooking(ctx context.Context, bandID, id uuid.UUID) (domain.Booking, error)
	// TransitionBooking moves a booking from one status to another. It fails
	// with ErrNotFound when the booking is no longer in the from status.
	TransitionBooking(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (domain.Booking, error)
}
