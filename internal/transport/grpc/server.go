package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"confesapp/backend/internal/auth"
	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/service/confessions"
	"confesapp/backend/internal/transport/wire"
)

type ConfessionsServer struct {
	svc confessionsService
	log *slog.Logger
	loc *time.Location
}

type confessionsService interface {
	CreateBand(ctx context.Context, priestID string, in confessions.CreateBandInput) (confessions.CreateBandResult, error)
	ListPriestBands(ctx context.Context, priestID string, r confessions.Range) ([]domain.Band, error)
	GetBand(ctx context.Context, priestID string, id uuid.UUID) (domain.Band, error)
	UpdateBand(ctx context.Context, priestID string, id uuid.UUID, in confessions.UpdateBandInput) (domain.Band, error)
	DeleteBand(ctx context.Context, priestID string, id uuid.UUID) (confessions.DeleteBandResult, error)
	SetBandStatus(ctx context.Context, priestID string, id uuid.UUID, status domain.BandStatus) (domain.Band, error)
	SetBookingOutcome(ctx context.Context, priestID string, bandID, bookingID uuid.UUID, status domain.BookingStatus) (domain.Booking, error)
	ListAvailableBands(ctx context.Context, f confessions.AvailableFilter) ([]domain.Band, error)
	BookBand(ctx context.Context, faithfulID string, in confessions.BookInput) (domain.Booking, error)
	ListFaithfulBookings(ctx context.Context, faithfulID string) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, faithfulID string, bookingID uuid.UUID) (domain.Booking, error)
}

var _ ConfessionBandsServer = (*ConfessionsServer)(nil)

// NewConfessionsServer exposes svc over gRPC. loc is the schedule time zone
// used to interpret bare dates.
func NewConfessionsServer(svc confessionsService, log *slog.Logger, loc *time.Location) *ConfessionsServer {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ConfessionsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.confessions")),
		loc: loc,
	}
}

func (s *ConfessionsServer) CreateBand(ctx context.Context, req *wire.CreateBandRequest) (*wire.CreateBandResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateBand"))

	actor, err := requireRole(ctx, auth.RolePriest)
	if err != nil {
		return nil, err
	}
	if err := wire.Validate(req); err != nil {
		return nil, s.fail(log, "band create", err, slog.String("priest_id", actor.ID))
	}
	in, err := req.Input(s.loc)
	if err != nil {
		return nil, s.fail(log, "band create", err, slog.String("priest_id", actor.ID))
	}

	res, err := s.svc.CreateBand(ctx, actor.ID, in)
	if err != nil {
		return nil, s.fail(log, "band create", err,
			slog.String("priest_id", actor.ID),
			slog.Time("start_time", in.StartTime),
			slog.Time("end_time", in.EndTime),
		)
	}

	log.Info(
		"band created",
		slog.String("band_id", res.Band.ID.String()),
		slog.String("priest_id", actor.ID),
		slog.Int("instances", res.Instances),
		slog.Int("skipped", len(res.Skipped)),
	)

	out := wire.FromCreateResult(res, s.loc)
	return &out, nil
}

func (s *ConfessionsServer) ListPriestBands(ctx context.Context, req *wire.RangeRequest) (*wire.BandList, error) {
	log := s.log.With(slog.String("rpc", "ListPriestBands"))

	actor, err := requireRole(ctx, auth.RolePriest)
	if err != nil {
		return nil, err
	}
	rng, err := req.Range(s.loc)
	if err != nil {
		return nil, s.fail(log, "bands list", err, slog.String("priest_id", actor.ID))
	}

	bands, err := s.svc.ListPriestBands(ctx, actor.ID, rng)
	if err != nil {
		return nil, s.fail(log, "bands list", err, slog.String("priest_id", actor.ID))
	}

	log.Debug("bands listed", slog.String("priest_id", actor.ID), slog.Int("count", len(bands)))
	return &wire.BandList{Bands: wire.FromBands(bands, s.loc)}, nil
}

func (s *ConfessionsServer) GetBand(ctx context.Context, req *wire.BandIDRequest) (*wire.Band, error) {
	log := s.log.With(slog.String("rpc", "GetBand"))

	actor, err := requireRole(ctx, auth.RolePriest)
	if err != nil {
		return nil, err
	}
	id, err := wire.ParseID("id", req.ID)
	if err != nil {
		return nil, s.fail(log, "band get", err, slog.String("priest_id", actor.ID))
	}

	band, err := s.svc.GetBand(ctx, actor.ID, id)
	if err != nil {
		return nil, s.fail(log, "band get", err, slog.String("band_id", id.String()), slog.String("priest_id", actor.ID))
	}

	out := wire.FromBand(band, s.loc)
	return &out, nil
}

func (s *ConfessionsServer) UpdateBand(ctx context.Context, req *wire.UpdateBandRequest) (*wire.Band, error) {
	log := s.log.With(slog.String("rpc", "UpdateBand"))

	actor, err := requireRole(ctx, auth.RolePriest)
	if err != nil {
		return nil, err
	}
	id, err := wire.ParseID("id", req.ID)
	if err != nil {
		return nil, s.fail(log, "band update", err, slog.String("priest_id", actor.ID))
	}
	if err := wire.Validate(req); err != nil {
		return nil, s.fail(log, "band update", err, slog.String("priest_id", actor.ID))
	}
	in, err := req.Input(s.loc)
	if err != nil {
		return nil, s.fail(log, "band update", err, slog.String("priest_id", actor.ID))
	}

	band, err := s.svc.UpdateBand(ctx, actor.ID, id, in)
	if err != nil {
		return nil, s.fail(log, "band update", err, slog.String("band_id", id.String()), slog.String("priest_id", actor.ID))
	}

	log.Info("band updated", slog.String("band_id", band.ID.String()), slog.String("priest_id", actor.ID))
	out := wire.FromBand(band, s.loc)
	return &out, nil
}

func (s *ConfessionsServer) DeleteBand(ctx context.Context, req *wire.BandIDRequest) (*wire.DeleteBandResponse, error) {
	log := s.log.With(slog.String("rpc", "DeleteBand"))

	actor, err := requireRole(ctx, auth.RolePriest)
	if err != nil {
		return nil, err
	}
	id, err := wire.ParseID("id", req.ID)
	if err != nil {
		return nil, s.fail(log, "band delete", err, slog.String("priest_id", actor.ID))
	}

	res, err := s.svc.DeleteBand(ctx, actor.ID, id)
	if err != nil {
		return nil, s.fail(log, "band delete", err, slog.String("band_id", id.String()), slog.String("priest_id", actor.ID))
	}

	log.Info(
		"band deleted",
		slog.String("band_id", id.String()),
		slog.String("priest_id", actor.ID),
		slog.Int("instances_removed", res.InstancesRemoved),
	)
	out := wire.NewDeleteBandResponse(id.String(), res)
	return &out, nil
}

func (s *ConfessionsServer) SetBandStatus(ctx context.Context, req *wire.SetBandStatusRequest) (*wire.Band, error) {
	log := s.log.With(slog.String("rpc", "SetBandStatus"))

	actor, err := requireRole(ctx, auth.RolePriest)
	if err != nil {
		return nil, err
	}
	id, err := wire.ParseID("id", req.ID)
	if err != nil {
		return nil, s.fail(log, "band status", err, slog.String("priest_id", actor.ID))
	}
	if err := wire.Validate(req); err != nil {
		return nil, s.fail(log, "band status", err, slog.String("priest_id", actor.ID))
	}

	band, err := s.svc.SetBandStatus(ctx, actor.ID, id, domain.BandStatus(req.Status))
	if err != nil {
		return nil, s.fail(log, "band status", err,
			slog.String("band_id", id.String()),
			slog.String("priest_id", actor.ID),
			slog.String("status", req.Status),
		)
	}

	log.Info("band status changed", slog.String("band_id", id.String()), slog.String("status", string(band.Status)))
	out := wire.FromBand(band, s.loc)
	return &out, nil
}

func (s *ConfessionsServer) SetBookingOutcome(ctx context.Context, req *wire.SetBookingOutcomeRequest) (*wire.Booking, error) {
	log := s.log.With(slog.String("rpc", "SetBookingOutcome"))

	actor, err := requireRole(ctx, auth.RolePriest)
	if err != nil {
		return nil, err
	}
	bandID, err := wire.ParseID("bandId", req.BandID)
	if err != nil {
		return nil, s.fail(log, "booking outcome", err, slog.String("priest_id", actor.ID))
	}
	bookingID, err := wire.ParseID("bookingId", req.BookingID)
	if err != nil {
		return nil, s.fail(log, "booking outcome", err, slog.String("priest_id", actor.ID))
	}
	if err := wire.Validate(req); err != nil {
		return nil, s.fail(log, "booking outcome", err, slog.String("priest_id", actor.ID))
	}

	booking, err := s.svc.SetBookingOutcome(ctx, actor.ID, bandID, bookingID, domain.BookingStatus(req.Status))
	if err != nil {
		return nil, s.fail(log, "booking outcome", err,
			slog.String("band_id", bandID.String()),
			slog.String("booking_id", bookingID.String()),
		)
	}

	log.Info("booking outcome recorded", slog.String("booking_id", booking.ID.String()), slog.String("status", string(booking.Status)))
	out := wire.FromBooking(booking, s.loc)
	return &out, nil
}

// ListAvailableBands serves both faithful and anonymous callers.
func (s *ConfessionsServer) ListAvailableBands(ctx context.Context, req *wire.RangeRequest) (*wire.BandList, error) {
	log := s.log.With(slog.String("rpc", "ListAvailableBands"))

	f, err := req.AvailableFilter(s.loc)
	if err != nil {
		return nil, s.fail(log, "available list", err)
	}

	bands, err := s.svc.ListAvailableBands(ctx, f)
	if err != nil {
		return nil, s.fail(log, "available list", err)
	}

	log.Debug("available bands listed", slog.Int("count", len(bands)))
	return &wire.BandList{Bands: wire.FromBands(bands, s.loc)}, nil
}

func (s *ConfessionsServer) BookBand(ctx context.Context, req *wire.BookBandRequest) (*wire.Booking, error) {
	log := s.log.With(slog.String("rpc", "BookBand"))

	actor, err := requireRole(ctx, auth.RoleFaithful)
	if err != nil {
		return nil, err
	}
	if err := wire.Validate(req); err != nil {
		return nil, s.fail(log, "booking create", err, slog.String("faithful_id", actor.ID))
	}
	in, err := req.Input(s.loc)
	if err != nil {
		return nil, s.fail(log, "booking create", err, slog.String("faithful_id", actor.ID))
	}

	booking, err := s.svc.BookBand(ctx, actor.ID, in)
	if err != nil {
		return nil, s.fail(log, "booking create", err,
			slog.String("band_id", in.BandID.String()),
			slog.String("faithful_id", actor.ID),
		)
	}

	log.Info(
		"booking created",
		slog.String("booking_id", booking.ID.String()),
		slog.String("band_id", booking.BandID.String()),
		slog.String("faithful_id", actor.ID),
		slog.Time("scheduled_time", booking.ScheduledTime),
	)
	out := wire.FromBooking(booking, s.loc)
	return &out, nil
}

func (s *ConfessionsServer) ListFaithfulBookings(ctx context.Context, _ *wire.Empty) (*wire.BookingList, error) {
	log := s.log.With(slog.String("rpc", "ListFaithfulBookings"))

	actor, err := requireRole(ctx, auth.RoleFaithful)
	if err != nil {
		return nil, err
	}

	bookings, err := s.svc.ListFaithfulBookings(ctx, actor.ID)
	if err != nil {
		return nil, s.fail(log, "bookings list", err, slog.String("faithful_id", actor.ID))
	}

	log.Debug("bookings listed", slog.String("faithful_id", actor.ID), slog.Int("count", len(bookings)))
	return &wire.BookingList{Bookings: wire.FromBookings(bookings, s.loc)}, nil
}

func (s *ConfessionsServer) CancelBooking(ctx context.Context, req *wire.BookingIDRequest) (*wire.CancelBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelBooking"))

	actor, err := requireRole(ctx, auth.RoleFaithful)
	if err != nil {
		return nil, err
	}
	id, err := wire.ParseID("id", req.ID)
	if err != nil {
		return nil, s.fail(log, "booking cancel", err, slog.String("faithful_id", actor.ID))
	}

	booking, err := s.svc.CancelBooking(ctx, actor.ID, id)
	if err != nil {
		return nil, s.fail(log, "booking cancel", err, slog.String("booking_id", id.String()), slog.String("faithful_id", actor.ID))
	}

	log.Info("booking cancelled", slog.String("booking_id", id.String()), slog.String("faithful_id", actor.ID))
	out := wire.FromCancelledBooking(booking, s.loc)
	return &out, nil
}

// fail logs err at a level matching its kind and converts it to a status.
// Unclassified errors never leak their text to the caller.
func (s *ConfessionsServer) fail(log *slog.Logger, op string, err error, attrs ...any) error {
	var (
		fErr *wire.FieldError
		vErr *confessions.ValidationError
		cErr *confessions.ConflictError
		nErr *confessions.NotFoundError
	)
	args := append([]any{slog.Any("err", err)}, attrs...)

	if msg, ok := wire.ValidationMessage(err); ok {
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, msg)
	}

	switch {
	case errors.As(err, &fErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, fErr.Message)
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.As(err, &cErr):
		log.Info(op+" conflict", args...)
		return status.Error(codes.FailedPrecondition, cErr.Error())
	case errors.As(err, &nErr):
		log.Info(op+" not found", args...)
		return status.Error(codes.NotFound, nErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(op+" timed out", args...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	}

	log.Error(op+" failed", args...)
	return status.Error(codes.Internal, "internal error")
}
