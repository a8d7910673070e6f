package wire

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"confesapp/backend/internal/domain"
	"confesapp/backend/internal/service/confessions"
)

type Band struct {
	ID                string    `json:"id"`
	PriestID          string    `json:"priestId"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	Status            string    `json:"status"`
	Location          string    `json:"location"`
	Notes             string    `json:"notes"`
	MaxCapacity       int       `json:"maxCapacity"`
	CurrentBookings   int       `json:"currentBookings"`
	ParishID          *string   `json:"parishId,omitempty"`
	IsRecurrent       bool      `json:"isRecurrent"`
	RecurrenceType    string    `json:"recurrenceType"`
	RecurrenceDays    []int16   `json:"recurrenceDays,omitempty"`
	RecurrenceEndDate *string   `json:"recurrenceEndDate,omitempty"`
	ParentBandID      *string   `json:"parentBandId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	Bookings          []Booking `json:"bookings,omitempty"`
}

type Booking struct {
	ID               string    `json:"id"`
	FaithfulID       string    `json:"faithfulId"`
	BandID           string    `json:"bandId"`
	Status           string    `json:"status"`
	ScheduledTime    time.Time `json:"scheduledTime"`
	Notes            string    `json:"notes"`
	PreparationNotes string    `json:"preparationNotes"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Band             *Band     `json:"band,omitempty"`
}

type Span struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// FromBand renders a band; the recurrence end date is shown as a calendar
// date in loc.
func FromBand(b domain.Band, loc *time.Location) Band {
	out := Band{
		ID:              b.ID.String(),
		PriestID:        b.PriestID,
		StartTime:       b.StartTime.UTC(),
		EndTime:         b.EndTime.UTC(),
		Status:          string(b.Status),
		Location:        b.Location,
		Notes:           b.Notes,
		MaxCapacity:     b.MaxCapacity,
		CurrentBookings: b.CurrentBookings,
		ParishID:        b.ParishID,
		IsRecurrent:     b.IsRecurrent,
		RecurrenceType:  string(b.RecurrenceType),
		RecurrenceDays:  b.RecurrenceDays,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
	}
	if b.RecurrenceEndDate != nil {
		if loc == nil {
			loc = time.UTC
		}
		d := b.RecurrenceEndDate.In(loc).Format(dateLayout)
		out.RecurrenceEndDate = &d
	}
	if b.ParentBandID != nil {
		p := b.ParentBandID.String()
		out.ParentBandID = &p
	}
	for _, bk := range b.Bookings {
		out.Bookings = append(out.Bookings, FromBooking(bk, loc))
	}
	return out
}

func FromBands(bands []domain.Band, loc *time.Location) []Band {
	out := make([]Band, 0, len(bands))
	for _, b := range bands {
		out = append(out, FromBand(b, loc))
	}
	return out
}

func FromBooking(b domain.Booking, loc *time.Location) Booking {
	out := Booking{
		ID:               b.ID.String(),
		FaithfulID:       b.FaithfulID,
		BandID:           b.BandID.String(),
		Status:           string(b.Status),
		ScheduledTime:    b.ScheduledTime.UTC(),
		Notes:            b.Notes,
		PreparationNotes: b.PreparationNotes,
		CreatedAt:        b.CreatedAt.UTC(),
		UpdatedAt:        b.UpdatedAt.UTC(),
	}
	if b.Band != nil {
		band := FromBand(*b.Band, loc)
		out.Band = &band
	}
	return out
}

func FromBookings(bookings []domain.Booking, loc *time.Location) []Booking {
	out := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, FromBooking(b, loc))
	}
	return out
}

type CreateBandRequest struct {
	StartTime         string  `json:"startTime" binding:"required"`
	EndTime           string  `json:"endTime" binding:"required"`
	Location          string  `json:"location" binding:"max=255"`
	Notes             string  `json:"notes" binding:"max=2000"`
	MaxCapacity       int     `json:"maxCapacity" binding:"omitempty,min=1,max=50"`
	ParishID          *string `json:"parishId,omitempty"`
	IsRecurrent       bool    `json:"isRecurrent"`
	RecurrenceType    string  `json:"recurrenceType" binding:"omitempty,oneof=none daily weekly"`
	RecurrenceDays    []int16 `json:"recurrenceDays" binding:"omitempty,dive,min=0,max=6"`
	RecurrenceEndDate *string `json:"recurrenceEndDate,omitempty"`
}

func (r CreateBandRequest) Input(loc *time.Location) (confessions.CreateBandInput, error) {
	start, err := ParseInstant("startTime", r.StartTime, loc, false)
	if err != nil {
		return confessions.CreateBandInput{}, err
	}
	end, err := ParseInstant("endTime", r.EndTime, loc, false)
	if err != nil {
		return confessions.CreateBandInput{}, err
	}
	until, err := ParseOptional("recurrenceEndDate", r.RecurrenceEndDate, loc, true)
	if err != nil {
		return confessions.CreateBandInput{}, err
	}
	return confessions.CreateBandInput{
		StartTime:         start,
		EndTime:           end,
		Location:          r.Location,
		Notes:             r.Notes,
		MaxCapacity:       r.MaxCapacity,
		ParishID:          r.ParishID,
		IsRecurrent:       r.IsRecurrent,
		RecurrenceType:    domain.RecurrenceType(r.RecurrenceType),
		RecurrenceDays:    r.RecurrenceDays,
		RecurrenceEndDate: until,
	}, nil
}

type CreateBandResponse struct {
	Band      Band   `json:"band"`
	Instances int    `json:"instances"`
	Skipped   []Span `json:"skipped"`
}

func FromCreateResult(res confessions.CreateBandResult, loc *time.Location) CreateBandResponse {
	out := CreateBandResponse{
		Band:      FromBand(res.Band, loc),
		Instances: res.Instances,
		Skipped:   make([]Span, 0, len(res.Skipped)),
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, Span{StartTime: s.Start.UTC(), EndTime: s.End.UTC()})
	}
	return out
}

// UpdateBandRequest carries only the fields being changed. ID is taken from
// the path on HTTP.
type UpdateBandRequest struct {
	ID          string  `json:"id,omitempty"`
	StartTime   *string `json:"startTime,omitempty"`
	EndTime     *string `json:"endTime,omitempty"`
	Location    *string `json:"location,omitempty" binding:"omitempty,max=255"`
	Notes       *string `json:"notes,omitempty" binding:"omitempty,max=2000"`
	MaxCapacity *int    `json:"maxCapacity,omitempty" binding:"omitempty,min=1,max=50"`
	ParishID    *string `json:"parishId,omitempty"`
}

func (r UpdateBandRequest) Input(loc *time.Location) (confessions.UpdateBandInput, error) {
	start, err := ParseOptional("startTime", r.StartTime, loc, false)
	if err != nil {
		return confessions.UpdateBandInput{}, err
	}
	end, err := ParseOptional("endTime", r.EndTime, loc, false)
	if err != nil {
		return confessions.UpdateBandInput{}, err
	}
	return confessions.UpdateBandInput{
		StartTime:   start,
		EndTime:     end,
		Location:    r.Location,
		Notes:       r.Notes,
		MaxCapacity: r.MaxCapacity,
		ParishID:    r.ParishID,
	}, nil
}

type BandIDRequest struct {
	ID string `json:"id" binding:"required"`
}

type DeleteBandResponse struct {
	Message          string `json:"message"`
	ID               string `json:"id"`
	InstancesRemoved int    `json:"instancesRemoved"`
}

func NewDeleteBandResponse(id string, res confessions.DeleteBandResult) DeleteBandResponse {
	msg := "band deleted"
	if res.InstancesRemoved > 0 {
		msg = fmt.Sprintf("band deleted with %d future instances", res.InstancesRemoved)
	}
	return DeleteBandResponse{Message: msg, ID: id, InstancesRemoved: res.InstancesRemoved}
}

type CancelBookingResponse struct {
	Message string  `json:"message"`
	Booking Booking `json:"booking"`
}

func FromCancelledBooking(b domain.Booking, loc *time.Location) CancelBookingResponse {
	return CancelBookingResponse{Message: "booking cancelled", Booking: FromBooking(b, loc)}
}

type SetBandStatusRequest struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status" binding:"required"`
}

// RangeRequest bounds listings by band start. End dates without a time
// cover the whole day.
type RangeRequest struct {
	StartDate string `json:"startDate,omitempty" form:"startDate"`
	EndDate   string `json:"endDate,omitempty" form:"endDate"`
	ParishID  string `json:"parishId,omitempty" form:"parishId"`
}

func (r RangeRequest) Range(loc *time.Location) (confessions.Range, error) {
	from, err := ParseOptional("startDate", &r.StartDate, loc, false)
	if err != nil {
		return confessions.Range{}, err
	}
	to, err := ParseOptional("endDate", &r.EndDate, loc, true)
	if err != nil {
		return confessions.Range{}, err
	}
	return confessions.Range{From: from, To: to}, nil
}

func (r RangeRequest) AvailableFilter(loc *time.Location) (confessions.AvailableFilter, error) {
	rng, err := r.Range(loc)
	if err != nil {
		return confessions.AvailableFilter{}, err
	}
	f := confessions.AvailableFilter{Range: rng}
	if r.ParishID != "" {
		p := r.ParishID
		f.ParishID = &p
	}
	return f, nil
}

type BandList struct {
	Bands []Band `json:"bands"`
}

type BookBandRequest struct {
	BandID           string  `json:"bandId" binding:"required,uuid"`
	PreferredTime    *string `json:"preferredTime,omitempty"`
	Notes            string  `json:"notes" binding:"max=2000"`
	PreparationNotes string  `json:"preparationNotes" binding:"max=2000"`
}

func (r BookBandRequest) Input(loc *time.Location) (confessions.BookInput, error) {
	bandID, err := ParseID("bandId", r.BandID)
	if err != nil {
		return confessions.BookInput{}, err
	}
	preferred, err := ParseOptional("preferredTime", r.PreferredTime, loc, false)
	if err != nil {
		return confessions.BookInput{}, err
	}
	return confessions.BookInput{
		BandID:           bandID,
		PreferredTime:    preferred,
		Notes:            r.Notes,
		PreparationNotes: r.PreparationNotes,
	}, nil
}

type BookingIDRequest struct {
	ID string `json:"id" binding:"required"`
}

type SetBookingOutcomeRequest struct {
	BandID    string `json:"bandId,omitempty"`
	BookingID string `json:"bookingId,omitempty"`
	Status    string `json:"status" binding:"required,oneof=completed no_show"`
}

type BookingList struct {
	Bookings []Booking `json:"bookings"`
}

type Empty struct{}

func ParseID(field, v string) (uuid.UUID, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, &FieldError{Field: field, Message: field + " must be a UUID"}
	}
	return id, nil
}
