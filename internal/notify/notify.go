// Package notify publishes booking events for downstream delivery (email,
// push). Delivery itself is handled by other services.
package notify

import (
	"context"
	"log/slog"
	"time"

	"confesapp/backend/internal/domain"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
)

type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"bookingId"`
	BandID        string    `json:"bandId"`
	FaithfulID    string    `json:"faithfulId"`
	PriestID      string    `json:"priestId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Location      string    `json:"location,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func NewBookingEvent(typ string, booking domain.Booking, band domain.Band, now time.Time) BookingEvent {
	return BookingEvent{
		Type:          typ,
		BookingID:     booking.ID.String(),
		BandID:        booking.BandID.String(),
		FaithfulID:    booking.FaithfulID,
		PriestID:      band.PriestID,
		ScheduledTime: booking.ScheduledTime.UTC(),
		Location:      band.Location,
		OccurredAt:    now.UTC(),
	}
}

// LogNotifier writes booking events to the structured log. It is the default
// when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With(slog.String("component", "notify.log"))}
}

func (n *LogNotifier) BookingCreated(ctx context.Context, booking domain.Booking, band domain.Band) error {
	n.emit(ctx, NewBookingEvent(EventBookingCreated, booking, band, time.Now()))
	return nil
}

func (n *LogNotifier) BookingCancelled(ctx context.Context, booking domain.Booking, band domain.Band) error {
	n.emit(ctx, NewBookingEvent(EventBookingCancelled, booking, band, time.Now()))
	return nil
}

func (n *LogNotifier) emit(ctx context.Context, ev BookingEvent) {
	n.log.InfoContext(
		ctx,
		"booking event",
		slog.String("type", ev.Type),
		slog.String("booking_id", ev.BookingID),
		slog.String("band_id", ev.BandID),
		slog.String("faithful_id", ev.FaithfulID),
		slog.String("priest_id", ev.PriestID),
		slog.Time("scheduled_time", ev.ScheduledTime),
	)
}
