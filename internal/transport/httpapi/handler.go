// Package httpapi serves the confession-band operations as a JSON REST API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"confesapp/backend/internal/auth"
	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/service/confessions"
	"confesapp/backend/internal/transport/wire"
)

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

type Handler struct {
	svc confessionsService
	log *slog.Logger
	loc *time.Location
}

func NewHandler(svc confessionsService, log *slog.Logger, loc *time.Location) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		svc: svc,
		log: log.With(slog.String("component", "http.confessions")),
		loc: loc,
	}
}

var registerNames sync.Once

// NewRouter builds the engine with logging, recovery and the API routes
// under /api/v1/confession-bands.
func NewRouter(h *Handler, v tokenVerifier, log *slog.Logger) *gin.Engine {
	registerNames.Do(func() {
		if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
			wire.RegisterJSONNames(engine)
		}
	})

	r := gin.New()
	r.Use(Recovery(log), RequestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	h.RegisterRoutes(r.Group("/api/v1/confession-bands"), v)
	return r
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, v tokenVerifier) {
	rg.GET("/public/available", h.ListAvailableBands)

	authed := rg.Group("", Authenticate(v))

	priest := authed.Group("", RequireRole(auth.RolePriest))
	priest.POST("", h.CreateBand)
	priest.GET("/my-bands", h.ListMyBands)
	priest.GET("/my-bands/:id", h.GetMyBand)
	priest.PATCH("/my-bands/:id", h.UpdateMyBand)
	priest.DELETE("/my-bands/:id", h.DeleteMyBand)
	priest.PATCH("/my-bands/:id/status", h.SetMyBandStatus)
	priest.PATCH("/my-bands/:id/bookings/:bookingId/outcome", h.SetBookingOutcome)

	faithful := authed.Group("", RequireRole(auth.RoleFaithful))
	faithful.GET("/available", h.ListAvailableBands)
	faithful.POST("/book", h.BookBand)
	faithful.GET("/my-bookings", h.ListMyBookings)
	faithful.PATCH("/bookings/:id/cancel", h.CancelBooking)
}

func (h *Handler) CreateBand(c *gin.Context) {
	log := h.log.With(slog.String("route", "CreateBand"))
	actor, _ := actorFrom(c)

	var req wire.CreateBandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, log, err)
		return
	}
	in, err := req.Input(h.loc)
	if err != nil {
		writeError(c, log, "band create", err, slog.String("priest_id", actor.ID))
		return
	}

	res, err := h.svc.CreateBand(c.Request.Context(), actor.ID, in)
	if err != nil {
		writeError(c, log, "band create", err, slog.String("priest_id", actor.ID))
		return
	}

	log.Info(
		"band created",
		slog.String("band_id", res.Band.ID.String()),
		slog.String("priest_id", actor.ID),
		slog.Int("instances", res.Instances),
		slog.Int("skipped", len(res.Skipped)),
	)
	success(c, http.StatusCreated, wire.FromCreateResult(res, h.loc))
}

func (h *Handler) ListMyBands(c *gin.Context) {
	log := h.log.With(slog.String("route", "ListMyBands"))
	actor, _ := actorFrom(c)

	var req wire.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, log, err)
		return
	}
	rng, err := req.Range(h.loc)
	if err != nil {
		writeError(c, log, "bands list", err, slog.String("priest_id", actor.ID))
		return
	}

	bands, err := h.svc.ListPriestBands(c.Request.Context(), actor.ID, rng)
	if err != nil {
		writeError(c, log, "bands list", err, slog.String("priest_id", actor.ID))
		return
	}
	success(c, http.StatusOK, wire.FromBands(bands, h.loc))
}

func (h *Handler) GetMyBand(c *gin.Context) {
	log := h.log.With(slog.String("route", "GetMyBand"))
	actor, _ := actorFrom(c)

	id, err := wire.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, log, "band get", err)
		return
	}

	band, err := h.svc.GetBand(c.Request.Context(), actor.ID, id)
	if err != nil {
		writeError(c, log, "band get", err, slog.String("band_id", id.String()), slog.String("priest_id", actor.ID))
		return
	}
	success(c, http.StatusOK, wire.FromBand(band, h.loc))
}

func (h *Handler) UpdateMyBand(c *gin.Context) {
	log := h.log.With(slog.String("route", "UpdateMyBand"))
	actor, _ := actorFrom(c)

	id, err := wire.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, log, "band update", err)
		return
	}
	var req wire.UpdateBandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, log, err)
		return
	}
	in, err := req.Input(h.loc)
	if err != nil {
		writeError(c, log, "band update", err, slog.String("band_id", id.String()))
		return
	}

	band, err := h.svc.UpdateBand(c.Request.Context(), actor.ID, id, in)
	if err != nil {
		writeError(c, log, "band update", err, slog.String("band_id", id.String()), slog.String("priest_id", actor.ID))
		return
	}

	log.Info("band updated", slog.String("band_id", id.String()), slog.String("priest_id", actor.ID))
	success(c, http.StatusOK, wire.FromBand(band, h.loc))
}

func (h *Handler) DeleteMyBand(c *gin.Context) {
	log := h.log.With(slog.String("route", "DeleteMyBand"))
	actor, _ := actorFrom(c)

	id, err := wire.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, log, "band delete", err)
		return
	}

	res, err := h.svc.DeleteBand(c.Request.Context(), actor.ID, id)
	if err != nil {
		writeError(c, log, "band delete", err, slog.String("band_id", id.String()), slog.String("priest_id", actor.ID))
		return
	}

	log.Info(
		"band deleted",
		slog.String("band_id", id.String()),
		slog.String("priest_id", actor.ID),
		slog.Int("instances_removed", res.InstancesRemoved),
	)
	success(c, http.StatusOK, wire.NewDeleteBandResponse(id.String(), res))
}

func (h *Handler) SetMyBandStatus(c *gin.Context) {
	log := h.log.With(slog.String("route", "SetMyBandStatus"))
	actor, _ := actorFrom(c)

	id, err := wire.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, log, "band status", err)
		return
	}
	var req wire.SetBandStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, log, err)
		return
	}

	band, err := h.svc.SetBandStatus(c.Request.Context(), actor.ID, id, domain.BandStatus(req.Status))
	if err != nil {
		writeError(c, log, "band status", err,
			slog.String("band_id", id.String()),
			slog.String("priest_id", actor.ID),
			slog.String("status", req.Status),
		)
		return
	}

	log.Info("band status changed", slog.String("band_id", id.String()), slog.String("status", string(band.Status)))
	success(c, http.StatusOK, wire.FromBand(band, h.loc))
}

func (h *Handler) SetBookingOutcome(c *gin.Context) {
	log := h.log.With(slog.String("route", "SetBookingOutcome"))
	actor, _ := actorFrom(c)

	bandID, err := wire.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, log, "booking outcome", err)
		return
	}
	bookingID, err := wire.ParseID("bookingId", c.Param("bookingId"))
	if err != nil {
		writeError(c, log, "booking outcome", err)
		return
	}
	var req wire.SetBookingOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, log, err)
		return
	}

	booking, err := h.svc.SetBookingOutcome(c.Request.Context(), actor.ID, bandID, bookingID, domain.BookingStatus(req.Status))
	if err != nil {
		writeError(c, log, "booking outcome", err,
			slog.String("band_id", bandID.String()),
			slog.String("booking_id", bookingID.String()),
		)
		return
	}

	log.Info("booking outcome recorded", slog.String("booking_id", bookingID.String()), slog.String("status", req.Status))
	success(c, http.StatusOK, wire.FromBooking(booking, h.loc))
}

func (h *Handler) ListAvailableBands(c *gin.Context) {
	log := h.log.With(slog.String("route", "ListAvailableBands"))

	var req wire.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, log, err)
		return
	}
	f, err := req.AvailableFilter(h.loc)
	if err != nil {
		writeError(c, log, "available list", err)
		return
	}

	bands, err := h.svc.ListAvailableBands(c.Request.Context(), f)
	if err != nil {
		writeError(c, log, "available list", err)
		return
	}
	success(c, http.StatusOK, wire.FromBands(bands, h.loc))
}

func (h *Handler) BookBand(c *gin.Context) {
	log := h.log.With(slog.String("route", "BookBand"))
	actor, _ := actorFrom(c)

	var req wire.BookBandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, log, err)
		return
	}
	in, err := req.Input(h.loc)
	if err != nil {
		writeError(c, log, "booking create", err, slog.String("faithful_id", actor.ID))
		return
	}

	booking, err := h.svc.BookBand(c.Request.Context(), actor.ID, in)
	if err != nil {
		writeError(c, log, "booking create", err,
			slog.String("band_id", in.BandID.String()),
			slog.String("faithful_id", actor.ID),
		)
		return
	}

	log.Info(
		"booking created",
		slog.String("booking_id", booking.ID.String()),
		slog.String("band_id", booking.BandID.String()),
		slog.String("faithful_id", actor.ID),
		slog.Time("scheduled_time", booking.ScheduledTime),
	)
	success(c, http.StatusCreated, wire.FromBooking(booking, h.loc))
}

func (h *Handler) ListMyBookings(c *gin.Context) {
	log := h.log.With(slog.String("route", "ListMyBookings"))
	actor, _ := actorFrom(c)

	bookings, err := h.svc.ListFaithfulBookings(c.Request.Context(), actor.ID)
	if err != nil {
		writeError(c, log, "bookings list", err, slog.String("faithful_id", actor.ID))
		return
	}
	success(c, http.StatusOK, wire.FromBookings(bookings, h.loc))
}

func (h *Handler) CancelBooking(c *gin.Context) {
	log := h.log.With(slog.String("route", "CancelBooking"))
	actor, _ := actorFrom(c)

	id, err := wire.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, log, "booking cancel", err)
		return
	}

	booking, err := h.svc.CancelBooking(c.Request.Context(), actor.ID, id)
	if err != nil {
		writeError(c, log, "booking cancel", err, slog.String("booking_id", id.String()), slog.String("faithful_id", actor.ID))
		return
	}

	log.Info("booking cancelled", slog.String("booking_id", id.String()), slog.String("faithful_id", actor.ID))
	success(c, http.StatusOK, wire.FromCancelledBooking(booking, h.loc))
}
