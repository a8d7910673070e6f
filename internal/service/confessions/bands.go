package confessions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/store"
)

type CreateBandInput struct {
	StartTime         time.Time
	EndTime           time.Time
	Location          string
	Notes             string
	MaxCapacity       int
	ParishID          *string
	IsRecurrent       bool
	RecurrenceType    domain.RecurrenceType
	RecurrenceDays    []int16
	RecurrenceEndDate *time.Time
}

// CreateBandResult carries the stored band plus the outcome of recurrence
// expansion. Skipped lists generated instances left out because they would
// overlap a band the priest already holds.
type CreateBandResult struct {
	Band      domain.Band
	Instances int
	Skipped   []domain.Span
}

func (s *Service) CreateBand(ctx context.Context, priestID string, in CreateBandInput) (res CreateBandResult, err error) {
	ctx, span := s.startSpan(ctx, "CreateBand", attribute.String("priest_id", priestID))
	defer func() { endSpan(span, err) }()

	band, err := s.newBand(priestID, in)
	if err != nil {
		return CreateBandResult{}, err
	}

	var (
		parent    domain.Band
		instances int
		skipped   []domain.Span
	)
	err = s.repo.InPriestTransaction(ctx, priestID, func(ctx context.Context, tx store.ScheduleTx) error {
		overlap, err := hasOverlap(ctx, tx, priestID, band.Span(), domain.Band{})
		if err != nil {
			return err
		}
		if overlap {
			return conflictError(msgBandOverlap)
		}

		rows, err := tx.InsertBands(ctx, []domain.Band{band})
		if err != nil {
			return err
		}
		parent = rows[0]

		generated, err := domain.ExpandRecurrence(parent, s.loc)
		if err != nil {
			return validationError(err.Error())
		}
		accepted, rejected, err := acceptInstances(ctx, tx, priestID, generated)
		if err != nil {
			return err
		}
		for _, batch := range domain.Batches(accepted, domain.RecurrenceBatchSize) {
			if _, err := tx.InsertBands(ctx, batch); err != nil {
				return err
			}
		}
		instances, skipped = len(accepted), rejected
		return nil
	})
	if err != nil {
		return CreateBandResult{}, translate(err, msgBandNotFound)
	}

	out, err := s.repo.GetBand(ctx, parent.ID)
	if err != nil {
		return CreateBandResult{}, translate(err, msgBandNotFound)
	}

	if out.IsRecurrent {
		s.log.Info(
			"recurring band expanded",
			slog.String("band_id", out.ID.String()),
			slog.String("priest_id", priestID),
			slog.Int("instances", instances),
			slog.Int("skipped", len(skipped)),
		)
	}
	span.SetAttributes(attribute.Int("instances", instances), attribute.Int("skipped", len(skipped)))

	return CreateBandResult{Band: out, Instances: instances, Skipped: skipped}, nil
}

func (s *Service) newBand(priestID string, in CreateBandInput) (domain.Band, error) {
	if strings.TrimSpace(priestID) == "" {
		return domain.Band{}, validationError("priest_id is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return domain.Band{}, validationError("start_time and end_time are required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if !start.Before(end) {
		return domain.Band{}, validationError("start_time must be before end_time")
	}
	if !start.After(s.now()) {
		return domain.Band{}, validationError("start_time must be in the future")
	}

	capacity, err := bandCapacity(in.MaxCapacity, true)
	if err != nil {
		return domain.Band{}, err
	}

	band := domain.Band{
		PriestID:       priestID,
		StartTime:      start,
		EndTime:        end,
		Status:         domain.BandStatusAvailable,
		Location:       strings.TrimSpace(in.Location),
		Notes:          strings.TrimSpace(in.Notes),
		MaxCapacity:    capacity,
		ParishID:       normalizeID(in.ParishID),
		RecurrenceType: domain.RecurrenceNone,
	}

	if !in.IsRecurrent {
		return band, nil
	}

	typ := in.RecurrenceType
	if typ == "" {
		typ = domain.RecurrenceNone
	}
	if !typ.Valid() {
		return domain.Band{}, validationErrorf("unsupported recurrence type %q", string(typ))
	}

	band.IsRecurrent = true
	band.RecurrenceType = typ

	switch typ {
	case domain.RecurrenceWeekly:
		days, err := domain.NormalizeWeekdays(in.RecurrenceDays, start.In(s.loc).Weekday())
		if err != nil {
			return domain.Band{}, validationError(err.Error())
		}
		band.RecurrenceDays = days
	case domain.RecurrenceDaily:
		band.RecurrenceDays = nil
	}

	if in.RecurrenceEndDate != nil {
		endDate := in.RecurrenceEndDate.UTC()
		band.RecurrenceEndDate = &endDate

		y, m, d := start.In(s.loc).Date()
		startDay := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
		if domain.RecurrenceBoundary(band, s.loc).Before(startDay) {
			return domain.Band{}, validationError("recurrence_end_date must not be before start_time")
		}
	}

	return band, nil
}

// acceptInstances drops generated instances that overlap the priest's
// existing active bands or an instance accepted earlier in the same series.
func acceptInstances(ctx context.Context, tx store.ScheduleTx, priestID string, generated []domain.Band) ([]domain.Band, []domain.Span, error) {
	if len(generated) == 0 {
		return nil, nil, nil
	}

	window := domain.Span{Start: generated[0].StartTime, End: generated[len(generated)-1].EndTime}
	existing, err := tx.ListActiveBands(ctx, priestID, window)
	if err != nil {
		return nil, nil, err
	}

	accepted := make([]domain.Band, 0, len(generated))
	var skipped []domain.Span
	for _, inst := range generated {
		if domain.HasOverlap(existing, inst.Span(), uuid.Nil) {
			skipped = append(skipped, inst.Span())
			continue
		}
		accepted = append(accepted, inst)
		existing = append(existing, inst)
	}
	return accepted, skipped, nil
}

// UpdateBandInput is a partial update; nil fields are left unchanged.
type UpdateBandInput struct {
	StartTime   *time.Time
	EndTime     *time.Time
	Location    *string
	Notes       *string
	MaxCapacity *int
	ParishID    *string
}

func (in UpdateBandInput) touchesSchedule() bool {
	return in.StartTime != nil || in.EndTime != nil
}

func (s *Service) UpdateBand(ctx context.Context, priestID string, id uuid.UUID, in UpdateBandInput) (out domain.Band, err error) {
	ctx, span := s.startSpan(ctx, "UpdateBand", attribute.String("priest_id", priestID), attribute.String("band_id", id.String()))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return domain.Band{}, validationError("band_id is required")
	}
	if in.MaxCapacity != nil {
		if _, err := bandCapacity(*in.MaxCapacity, false); err != nil {
			return domain.Band{}, err
		}
	}

	err = s.repo.InPriestTransaction(ctx, priestID, func(ctx context.Context, tx store.ScheduleTx) error {
		band, err := tx.GetPriestBand(ctx, priestID, id)
		if err != nil {
			return err
		}

		if in.touchesSchedule() {
			next := band.Span()
			if in.StartTime != nil {
				next.Start = in.StartTime.UTC()
			}
			if in.EndTime != nil {
				next.End = in.EndTime.UTC()
			}
			if !next.Valid() {
				return validationError("start_time must be before end_time")
			}
			// Cancelled bands are rechecked when they are reactivated.
			if band.Status != domain.BandStatusCancelled {
				overlap, err := hasOverlap(ctx, tx, priestID, next, band)
				if err != nil {
					return err
				}
				if overlap {
					return conflictError(msgBandOverlap)
				}
			}
			band.StartTime, band.EndTime = next.Start, next.End
		}

		if band.HasBookings() && (in.touchesSchedule() || in.MaxCapacity != nil) {
			return conflictError(msgBandHasBookings)
		}

		if in.Location != nil {
			band.Location = strings.TrimSpace(*in.Location)
		}
		if in.Notes != nil {
			band.Notes = strings.TrimSpace(*in.Notes)
		}
		if in.MaxCapacity != nil {
			band.MaxCapacity = *in.MaxCapacity
		}
		if in.ParishID != nil {
			band.ParishID = normalizeID(in.ParishID)
		}
		band.RefreshStatus()

		_, err = tx.UpdateBand(ctx, band)
		return err
	})
	if err != nil {
		return domain.Band{}, translate(err, msgBandNotFound)
	}

	out, err = s.repo.GetBand(ctx, id)
	if err != nil {
		return domain.Band{}, translate(err, msgBandNotFound)
	}
	return out, nil
}

type DeleteBandResult struct {
	// InstancesRemoved counts future series instances deleted with a parent.
	InstancesRemoved int
}

func (s *Service) DeleteBand(ctx context.Context, priestID string, id uuid.UUID) (res DeleteBandResult, err error) {
	ctx, span := s.startSpan(ctx, "DeleteBand", attribute.String("priest_id", priestID), attribute.String("band_id", id.String()))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return DeleteBandResult{}, validationError("band_id is required")
	}

	err = s.repo.InPriestTransaction(ctx, priestID, func(ctx context.Context, tx store.ScheduleTx) error {
		band, err := tx.GetPriestBand(ctx, priestID, id)
		if err != nil {
			return err
		}
		if band.HasBookings() {
			return conflictError(msgBandHasBookings)
		}

		if band.IsSeriesParent() {
			n, err := tx.DeleteFutureInstances(ctx, band.ID, s.now())
			if err != nil {
				return err
			}
			res.InstancesRemoved = n
		}
		return tx.DeleteBand(ctx, band.ID)
	})
	if err != nil {
		return DeleteBandResult{}, translate(err, msgBandNotFound)
	}
	return res, nil
}

func (s *Service) SetBandStatus(ctx context.Context, priestID string, id uuid.UUID, status domain.BandStatus) (out domain.Band, err error) {
	ctx, span := s.startSpan(ctx, "SetBandStatus", attribute.String("priest_id", priestID), attribute.String("status", string(status)))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return domain.Band{}, validationError("band_id is required")
	}
	switch status {
	case domain.BandStatusAvailable, domain.BandStatusCancelled:
	case domain.BandStatusFull:
		return domain.Band{}, validationError("status full is derived from bookings and cannot be set")
	default:
		return domain.Band{}, validationErrorf("invalid status %q", string(status))
	}

	err = s.repo.InPriestTransaction(ctx, priestID, func(ctx context.Context, tx store.ScheduleTx) error {
		band, err := tx.GetPriestBand(ctx, priestID, id)
		if err != nil {
			return err
		}

		switch status {
		case domain.BandStatusCancelled:
			if band.HasBookings() {
				return conflictError(msgBandHasBookings)
			}
		case domain.BandStatusAvailable:
			if band.Status == domain.BandStatusCancelled {
				overlap, err := hasOverlap(ctx, tx, priestID, band.Span(), band)
				if err != nil {
					return err
				}
				if overlap {
					return conflictError(msgBandOverlap)
				}
			}
		}

		band.Status = status
		band.RefreshStatus()
		_, err = tx.UpdateBand(ctx, band)
		return err
	})
	if err != nil {
		return domain.Band{}, translate(err, msgBandNotFound)
	}

	out, err = s.repo.GetBand(ctx, id)
	if err != nil {
		return domain.Band{}, translate(err, msgBandNotFound)
	}
	return out, nil
}

// GetBand returns one of the priest's bands with its bookings.
func (s *Service) GetBand(ctx context.Context, priestID string, id uuid.UUID) (domain.Band, error) {
	if id == uuid.Nil {
		return domain.Band{}, validationError("band_id is required")
	}
	band, err := s.repo.GetBand(ctx, id)
	if err != nil {
		return domain.Band{}, translate(err, msgBandNotFound)
	}
	if band.PriestID != priestID {
		return domain.Band{}, notFoundError(msgBandNotFound)
	}
	return band, nil
}

// Range bounds listings by band start time. Either end may be open.
type Range struct {
	From *time.Time
	To   *time.Time
}

func (r Range) validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return validationError("end_date must not be before start_date")
	}
	return nil
}

func (s *Service) ListPriestBands(ctx context.Context, priestID string, r Range) ([]domain.Band, error) {
	if strings.TrimSpace(priestID) == "" {
		return nil, validationError("priest_id is required")
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return s.repo.ListBands(ctx, store.BandFilter{
		PriestID:     priestID,
		From:         r.From,
		To:           r.To,
		WithBookings: true,
	})
}

type AvailableFilter struct {
	Range
	ParishID *string
}

// ListAvailableBands returns future bands that still accept bookings. Full
// and cancelled bands are excluded by the query itself.
func (s *Service) ListAvailableBands(ctx context.Context, f AvailableFilter) ([]domain.Band, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	return s.repo.ListBands(ctx, store.BandFilter{
		Status:       domain.BandStatusAvailable,
		ParishID:     normalizeID(f.ParishID),
		From:         f.From,
		To:           f.To,
		StartsAfter:  &now,
		WithCapacity: true,
	})
}

func bandCapacity(v int, allowDefault bool) (int, error) {
	if v == 0 && allowDefault {
		return domain.DefaultBandCapacity, nil
	}
	if v < domain.MinBandCapacity || v > domain.MaxBandCapacity {
		return 0, validationErrorf("max_capacity must be between %d and %d", domain.MinBandCapacity, domain.MaxBandCapacity)
	}
	return v, nil
}

func normalizeID(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
