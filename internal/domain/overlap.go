package domain

import (
	"time"

	"github.com/google/uuid"
)

// Span is a half-open interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) Valid() bool {
	return s.Start.Before(s.End)
}

// Overlaps reports whether the spans share any instant. Touching endpoints
// do not overlap.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && s.End.After(o.Start)
}

// FindOverlap returns the first non-cancelled band, other than exclude, that
// overlaps span.
func FindOverlap(bands []Band, span Span, exclude uuid.UUID) (Band, bool) {
	for _, b := range bands {
		if b.Status == BandStatusCancelled {
			continue
		}
		if exclude != uuid.Nil && b.ID == exclude {
			continue
		}
		if b.Span().Overlaps(span) {
			return b, true
		}
	}
	return Band{}, false
}

func HasOverlap(bands []Band, span Span, exclude uuid.UUID) bool {
	_, ok := FindOverlap(bands, span, exclude)
	return ok
}
