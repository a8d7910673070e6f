package domain

import (
	"errors"
	"sort"
	"strconv"
	"time"
)

type RecurrenceType string

const (
	RecurrenceNone   RecurrenceType = "none"
	RecurrenceDaily  RecurrenceType = "daily"
	RecurrenceWeekly RecurrenceType = "weekly"
)

func (t RecurrenceType) Valid() bool {
	switch t {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly:
		return true
	}
	return false
}

const (
	// RecurrenceHorizon bounds series that have no explicit end date.
	RecurrenceHorizon = 365 * 24 * time.Hour
	// RecurrenceBatchSize is the number of generated instances written per insert.
	RecurrenceBatchSize = 50
)

// NormalizeWeekdays validates weekday numbers (0 = Sunday .. 6 = Saturday),
// removes duplicates and sorts them. An empty set falls back to the given day.
func NormalizeWeekdays(days []int16, fallback time.Weekday) ([]int16, error) {
	if len(days) == 0 {
		return []int16{int16(fallback)}, nil
	}

	seen := make(map[int16]struct{}, len(days))
	out := make([]int16, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, errors.New("invalid weekday: " + strconv.Itoa(int(d)))
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// RecurrenceBoundary is the last calendar day (midnight in loc) that may hold
// a generated instance.
func RecurrenceBoundary(parent Band, loc *time.Location) time.Time {
	end := parent.StartTime.Add(RecurrenceHorizon)
	if parent.RecurrenceEndDate != nil {
		end = *parent.RecurrenceEndDate
	}
	return dateOf(end, loc)
}

// ExpandRecurrence generates the instances of a recurring parent band. Days
// are walked from the day after the parent's start through the boundary day,
// inclusive; each instance keeps the parent's wall-clock start and duration.
// An explicit end date is also an instant bound: no instance starts after it.
// The parent itself is never part of the result.
func ExpandRecurrence(parent Band, loc *time.Location) ([]Band, error) {
	if !parent.IsRecurrent || parent.RecurrenceType == RecurrenceNone {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	duration := parent.EndTime.Sub(parent.StartTime)
	if duration <= 0 {
		return nil, errors.New("invalid duration")
	}

	start := parent.StartTime.In(loc)

	var match func(time.Weekday) bool
	switch parent.RecurrenceType {
	case RecurrenceDaily:
		match = func(time.Weekday) bool { return true }
	case RecurrenceWeekly:
		days, err := NormalizeWeekdays(parent.RecurrenceDays, start.Weekday())
		if err != nil {
			return nil, err
		}
		set := make(map[time.Weekday]struct{}, len(days))
		for _, d := range days {
			set[time.Weekday(d)] = struct{}{}
		}
		match = func(wd time.Weekday) bool {
			_, ok := set[wd]
			return ok
		}
	default:
		return nil, errors.New("unsupported recurrence type")
	}

	boundary := RecurrenceBoundary(parent, loc)
	y, m, d := start.Date()
	h, mi, s := start.Clock()

	var out []Band
	for i := 1; ; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		if day.After(boundary) {
			break
		}
		if !match(day.Weekday()) {
			continue
		}
		instStart := time.Date(y, m, d+i, h, mi, s, start.Nanosecond(), loc).UTC()
		if parent.RecurrenceEndDate != nil && instStart.After(*parent.RecurrenceEndDate) {
			break
		}
		out = append(out, newInstance(parent, instStart, instStart.Add(duration)))
	}
	return out, nil
}

func newInstance(parent Band, start, end time.Time) Band {
	parentID := parent.ID
	return Band{
		PriestID:        parent.PriestID,
		StartTime:       start,
		EndTime:         end,
		Status:          BandStatusAvailable,
		Location:        parent.Location,
		Notes:           parent.Notes,
		MaxCapacity:     parent.MaxCapacity,
		CurrentBookings: 0,
		ParishID:        parent.ParishID,
		IsRecurrent:     false,
		RecurrenceType:  RecurrenceNone,
		ParentBandID:    &parentID,
	}
}

// Batches splits bands into consecutive chunks of at most size elements.
func Batches(bands []Band, size int) [][]Band {
	if size <= 0 {
		size = RecurrenceBatchSize
	}
	out := make([][]Band, 0, (len(bands)+size-1)/size)
	for len(bands) > 0 {
		n := min(size, len(bands))
		out = append(out, bands[:n:n])
		bands = bands[n:]
	}
	return out
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
