// Package confessions schedules confession bands for priests and turns their
// free seats into bookings for the faithful.
package confessions

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/store"
)

const tracerName = "confesapp/backend/internal/service/confessions"

// Notifier receives booking events after the owning transaction commits.
type Notifier interface {
	BookingCreated(ctx context.Context, booking domain.Booking, band domain.Band) error
	BookingCancelled(ctx context.Context, booking domain.Booking, band domain.Band) error
}

type Service struct {
	repo     store.ScheduleRepository
	notifier Notifier
	log      *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the calendar used to lay out recurring instances.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewService(repo store.ScheduleRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: nopNotifier{},
		log:      slog.Default(),
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "service.confessions"))
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "confessions."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// hasOverlap reports whether the priest already holds a non-cancelled band
// intersecting span, ignoring exclude.
func hasOverlap(ctx context.Context, tx store.ScheduleTx, priestID string, span domain.Span, exclude domain.Band) (bool, error) {
	bands, err := tx.ListActiveBands(ctx, priestID, span)
	if err != nil {
		return false, err
	}
	return domain.HasOverlap(bands, span, exclude.ID), nil
}

type nopNotifier struct{}

func (nopNotifier) BookingCreated(context.Context, domain.Booking, domain.Band) error   { return nil }
func (nopNotifier) BookingCancelled(context.Context, domain.Booking, domain.Band) error { return nil }
