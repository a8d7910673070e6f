package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/store"
)

const (
	constraintBandsNoOverlap        = "bands_no_overlap"
	constraintOneActivePerFaithful  = "bookings_one_active_per_faithful"
	sqlStateExclusionViolation      = "23P01"
	sqlStateUniqueViolation         = "23505"
	sqlStateForeignKeyViolation     = "23503"
	sqlStateCheckConstraintViolated = "23514"
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

var _ store.ScheduleRepository = (*ScheduleRepo)(nil)

type scheduleTx struct {
	tx bun.Tx
}

func (r *ScheduleRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func (r *ScheduleRepo) InPriestTransaction(ctx context.Context, priestID string, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockPriestSchedule(ctx, tx, priestID); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func lockPriestSchedule(ctx context.Context, tx bun.Tx, priestID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "bands:"+priestID).Exec(ctx)
	return err
}

func (r *ScheduleRepo) GetBand(ctx context.Context, id uuid.UUID) (domain.Band, error) {
	var band domain.Band
	err := r.db.NewSelect().
		Model(&band).
		Relation("Bookings", orderBookings).
		Where("band.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Band{}, notFound(err)
	}
	return band, nil
}

func (r *ScheduleRepo) ListBands(ctx context.Context, f store.BandFilter) ([]domain.Band, error) {
	rows := make([]domain.Band, 0)
	q := r.db.NewSelect().Model(&rows)
	if f.WithBookings {
		q = q.Relation("Bookings", orderBookings)
	}
	if f.PriestID != "" {
		q = q.Where("band.priest_id = ?", f.PriestID)
	}
	if f.Status != "" {
		q = q.Where("band.status = ?", f.Status)
	}
	if f.ParishID != nil {
		q = q.Where("band.parish_id = ?", *f.ParishID)
	}
	if f.From != nil {
		q = q.Where("band.start_time >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("band.start_time <= ?", f.To.UTC())
	}
	if f.StartsAfter != nil {
		q = q.Where("band.start_time > ?", f.StartsAfter.UTC())
	}
	if f.WithCapacity {
		q = q.Where("band.current_bookings < band.max_capacity")
	}
	err := q.OrderExpr("band.start_time ASC, band.id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) ListFaithfulBookings(ctx context.Context, faithfulID string) ([]domain.Booking, error) {
	rows := make([]domain.Booking, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Band").
		Where("booking.faithful_id = ?", faithfulID).
		OrderExpr("booking.scheduled_time ASC, booking.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func orderBookings(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("booking.created_at ASC, booking.id ASC")
}

func (r scheduleTx) GetPriestBand(ctx context.Context, priestID string, id uuid.UUID) (domain.Band, error) {
	var band domain.Band
	err := r.tx.NewSelect().
		Model(&band).
		Where("band.id = ?", id).
		Where("band.priest_id = ?", priestID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Band{}, notFound(err)
	}
	return band, nil
}

func (r scheduleTx) GetBandForUpdate(ctx context.Context, id uuid.UUID) (domain.Band, error) {
	var band domain.Band
	err := r.tx.NewSelect().
		Model(&band).
		Where("band.id = ?", id).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Band{}, notFound(err)
	}
	return band, nil
}

func (r scheduleTx) ListActiveBands(ctx context.Context, priestID string, window domain.Span) ([]domain.Band, error) {
	rows := make([]domain.Band, 0)
	err := r.tx.NewSelect().
		Model(&rows).
		Where("band.priest_id = ?", priestID).
		Where("band.status <> ?", domain.BandStatusCancelled).
		Where("band.start_time < ?", window.End.UTC()).
		Where("band.end_time > ?", window.Start.UTC()).
		OrderExpr("band.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r scheduleTx) InsertBands(ctx context.Context, bands []domain.Band) ([]domain.Band, error) {
	if len(bands) == 0 {
		return nil, nil
	}
	rows := make([]domain.Band, len(bands))
	now := time.Now().UTC()
	for i, b := range bands {
		b.Bookings = nil
		if err := b.Touch(now, true); err != nil {
			return nil, err
		}
		rows[i] = b
	}

	if _, err := r.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return nil, mapWriteError(err)
	}
	return rows, nil
}

func (r scheduleTx) UpdateBand(ctx context.Context, band domain.Band) (domain.Band, error) {
	band.Bookings = nil
	res, err := r.tx.NewUpdate().
		Model(&band).
		Column(
			"start_time", "end_time", "status", "location", "notes",
			"max_capacity", "parish_id", "updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Band{}, mapWriteError(err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Band{}, err
	}
	return band, nil
}

func (r scheduleTx) DeleteBand(ctx context.Context, id uuid.UUID) error {
	res, err := r.tx.NewDelete().
		Model((*domain.Band)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r scheduleTx) DeleteFutureInstances(ctx context.Context, parentID uuid.UUID, after time.Time) (int, error) {
	res, err := r.tx.NewDelete().
		Model((*domain.Band)(nil)).
		Where("parent_band_id = ?", parentID).
		Where("start_time > ?", after.UTC()).
		Where("current_bookings = 0").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r scheduleTx) AdjustOccupancy(ctx context.Context, bandID uuid.UUID, delta int) (domain.Band, error) {
	var band domain.Band
	err := r.tx.NewRaw(`
		UPDATE bands
		SET current_bookings = GREATEST(current_bookings + ?0, 0),
		    status = CASE
		        WHEN status = ?1 THEN status
		        WHEN GREATEST(current_bookings + ?0, 0) >= max_capacity THEN ?2
		        ELSE ?3
		    END,
		    updated_at = ?4
		WHERE id = ?5
		  AND current_bookings + ?0 <= max_capacity
		RETURNING *`,
		delta,
		domain.BandStatusCancelled,
		domain.BandStatusFull,
		domain.BandStatusAvailable,
		time.Now().UTC(),
		bandID,
	).Scan(ctx, &band)
	if err == nil {
		return band, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Band{}, err
	}

	exists, err := r.tx.NewSelect().Model((*domain.Band)(nil)).Where("id = ?", bandID).Exists(ctx)
	if err != nil {
		return domain.Band{}, err
	}
	if !exists {
		return domain.Band{}, store.ErrNotFound
	}
	return domain.Band{}, store.ErrCapacityExhausted
}

func (r scheduleTx) InsertBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	booking.Band = nil
	if err := booking.Touch(time.Now().UTC(), true); err != nil {
		return domain.Booking{}, err
	}
	if _, err := r.tx.NewInsert().Model(&booking).Exec(ctx); err != nil {
		return domain.Booking{}, mapWriteError(err)
	}
	return booking, nil
}

func (r scheduleTx) FindActiveBooking(ctx context.Context, faithfulID string, bandID uuid.UUID) (domain.Booking, error) {
	var booking domain.Booking
	err := r.tx.NewSelect().
		Model(&booking).
		Where("booking.faithful_id = ?", faithfulID).
		Where("booking.band_id = ?", bandID).
		Where("booking.status = ?", domain.BookingStatusBooked).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return booking, nil
}

func (r scheduleTx) GetFaithfulBooking(ctx context.Context, faithfulID string, id uuid.UUID) (domain.Booking, error) {
	var booking domain.Booking
	err := r.tx.NewSelect().
		Model(&booking).
		Where("booking.id = ?", id).
		Where("booking.faithful_id = ?", faithfulID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return booking, nil
}

func (r scheduleTx) GetBandBooking(ctx context.Context, bandID, id uuid.UUID) (domain.Booking, error) {
	var booking domain.Booking
	err := r.tx.NewSelect().
		Model(&booking).
		Where("booking.id = ?", id).
		Where("booking.band_id = ?", bandID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return booking, nil
}

func (r scheduleTx) TransitionBooking(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (domain.Booking, error) {
	var booking domain.Booking
	_, err := r.tx.NewUpdate().
		Model(&booking).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", from).
		Returning("*").
		Exec(ctx, &booking)
	if err != nil {
		return domain.Booking{}, mapWriteError(notFound(err))
	}
	if booking.ID == uuid.Nil {
		return domain.Booking{}, store.ErrNotFound
	}
	return booking, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// mapWriteError turns constraint violations raised by the schema into store
// sentinels.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == sqlStateExclusionViolation && pgErr.ConstraintName == constraintBandsNoOverlap:
		return store.ErrConflict
	case pgErr.Code == sqlStateUniqueViolation && pgErr.ConstraintName == constraintOneActivePerFaithful:
		return store.ErrDuplicate
	case pgErr.Code == sqlStateUniqueViolation:
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
	case pgErr.Code == sqlStateForeignKeyViolation:
		return store.ErrNotFound
	case pgErr.Code == sqlStateCheckConstraintViolated:
		return fmt.Errorf("check %s: %w", pgErr.ConstraintName, err)
	}
	return err
}
