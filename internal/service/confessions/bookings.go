package confessions

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/store"
)

type BookInput struct {
	BandID           uuid.UUID
	PreferredTime    *time.Time
	Notes            string
	PreparationNotes string
}

// BookBand reserves one seat of a band. The band row stays locked for the
// whole transaction and the seat is taken with a conditional increment, so
// concurrent requests can never push a band past its capacity.
func (s *Service) BookBand(ctx context.Context, faithfulID string, in BookInput) (out domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "BookBand", attribute.String("faithful_id", faithfulID), attribute.String("band_id", in.BandID.String()))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(faithfulID) == "" {
		return domain.Booking{}, validationError("faithful_id is required")
	}
	if in.BandID == uuid.Nil {
		return domain.Booking{}, validationError("band_id is required")
	}

	var band domain.Band
	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		b, err := tx.GetBandForUpdate(ctx, in.BandID)
		if err != nil {
			return err
		}
		if b.Status == domain.BandStatusCancelled {
			return conflictError(msgBandCancelled)
		}
		if !b.EndTime.After(s.now()) {
			return conflictError(msgBandEnded)
		}
		probe := b
		if err := probe.AdjustOccupancy(1); errors.Is(err, domain.ErrBandFull) {
			return conflictError(msgBandFull)
		}

		if _, err := tx.FindActiveBooking(ctx, faithfulID, b.ID); err == nil {
			return conflictError(msgAlreadyBooked)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		scheduled := b.StartTime
		if in.PreferredTime != nil {
			p := in.PreferredTime.UTC()
			if p.Before(b.StartTime) || !p.Before(b.EndTime) {
				return validationError("preferred_time must fall within the band")
			}
			scheduled = p
		}

		booking, err := tx.InsertBooking(ctx, domain.Booking{
			FaithfulID:       faithfulID,
			BandID:           b.ID,
			Status:           domain.BookingStatusBooked,
			ScheduledTime:    scheduled,
			Notes:            strings.TrimSpace(in.Notes),
			PreparationNotes: strings.TrimSpace(in.PreparationNotes),
		})
		if err != nil {
			return err
		}

		band, err = tx.AdjustOccupancy(ctx, b.ID, 1)
		if err != nil {
			return err
		}
		out = booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, translate(err, msgBandNotFound)
	}

	out.Band = &band
	if err := s.notifier.BookingCreated(ctx, out, band); err != nil {
		s.log.Warn("booking notification failed", slog.Any("err", err), slog.String("booking_id", out.ID.String()))
	}
	return out, nil
}

// CancelBooking releases the faithful's seat. It is only allowed while at
// least domain.CancellationNotice remains before the scheduled time.
func (s *Service) CancelBooking(ctx context.Context, faithfulID string, bookingID uuid.UUID) (out domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "CancelBooking", attribute.String("faithful_id", faithfulID), attribute.String("booking_id", bookingID.String()))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(faithfulID) == "" {
		return domain.Booking{}, validationError("faithful_id is required")
	}
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}

	var band domain.Band
	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		booking, err := tx.GetFaithfulBooking(ctx, faithfulID, bookingID)
		if err != nil {
			return err
		}
		if !booking.IsActive() {
			return notFoundError(msgBookingNotFound)
		}
		if _, err := tx.GetBandForUpdate(ctx, booking.BandID); err != nil {
			return err
		}
		if !booking.CanCancel(s.now()) {
			return conflictError(msgWindowClosed)
		}

		cancelled, err := tx.TransitionBooking(ctx, booking.ID, domain.BookingStatusBooked, domain.BookingStatusCancelled)
		if err != nil {
			return err
		}
		band, err = tx.AdjustOccupancy(ctx, booking.BandID, -1)
		if err != nil {
			return err
		}
		out = cancelled
		return nil
	})
	if err != nil {
		return domain.Booking{}, translate(err, msgBookingNotFound)
	}

	out.Band = &band
	if err := s.notifier.BookingCancelled(ctx, out, band); err != nil {
		s.log.Warn("booking notification failed", slog.Any("err", err), slog.String("booking_id", out.ID.String()))
	}
	return out, nil
}

// SetBookingOutcome lets the priest owning the band record whether a past
// booking was completed or missed. The seat is not released.
func (s *Service) SetBookingOutcome(ctx context.Context, priestID string, bandID, bookingID uuid.UUID, status domain.BookingStatus) (out domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "SetBookingOutcome", attribute.String("priest_id", priestID), attribute.String("booking_id", bookingID.String()))
	defer func() { endSpan(span, err) }()

	if bandID == uuid.Nil || bookingID == uuid.Nil {
		return domain.Booking{}, validationError("band_id and booking_id are required")
	}
	if status != domain.BookingStatusCompleted && status != domain.BookingStatusNoShow {
		return domain.Booking{}, validationErrorf("invalid outcome %q", string(status))
	}

	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		band, err := tx.GetPriestBand(ctx, priestID, bandID)
		if err != nil {
			return err
		}
		booking, err := tx.GetBandBooking(ctx, band.ID, bookingID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFoundError(msgBookingNotFound)
			}
			return err
		}
		if !booking.IsActive() {
			return conflictError(msgBookingNotActive)
		}
		if s.now().Before(booking.ScheduledTime) {
			return conflictError(msgBookingNotStarted)
		}

		updated, err := tx.TransitionBooking(ctx, booking.ID, domain.BookingStatusBooked, status)
		if err != nil {
			return err
		}
		updated.Band = &band
		out = updated
		return nil
	})
	if err != nil {
		return domain.Booking{}, translate(err, msgBandNotFound)
	}
	return out, nil
}

func (s *Service) ListFaithfulBookings(ctx context.Context, faithfulID string) ([]domain.Booking, error) {
	if strings.TrimSpace(faithfulID) == "" {
		return nil, validationError("faithful_id is required")
	}
	return s.repo.ListFaithfulBookings(ctx, faithfulID)
}
