// Package wire holds the JSON shapes shared by the HTTP and gRPC transports
// and their conversion to and from service types.
package wire

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// localLayouts are ISO-8601 date-times without a zone, read in the schedule
// location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseInstant accepts an RFC 3339 timestamp, a zone-less local date-time or a
// bare YYYY-MM-DD date. Zone-less values resolve in loc. Dates resolve to
// midnight, or to the last instant of the day when endOfDay is set.
func ParseInstant(field, v string, loc *time.Location, endOfDay bool) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC(), nil
		}
	}
	d, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return time.Time{}, &FieldError{Field: field, Message: fmt.Sprintf("%s must be an ISO-8601 date or timestamp", field)}
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d.UTC(), nil
}

// ParseOptional is ParseInstant for optional fields; nil and blank stay nil.
func ParseOptional(field string, v *string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := ParseInstant(field, *v, loc, endOfDay)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FieldError is a malformed request field, reported as invalid input.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}
