package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHasOverlap(t *testing.T) {
	base := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	existingID := uuid.MustParse("00000000-0000-0000-0000-000000000010")
	existing := []Band{{
		ID:        existingID,
		StartTime: base,
		EndTime:   base.Add(time.Hour),
		Status:    BandStatusAvailable,
	}}

	tests := []struct {
		name    string
		bands   []Band
		span    Span
		exclude uuid.UUID
		want    bool
	}{
		{"inside", existing, Span{base.Add(15 * time.Minute), base.Add(30 * time.Minute)}, uuid.Nil, true},
		{"straddles start", existing, Span{base.Add(-30 * time.Minute), base.Add(30 * time.Minute)}, uuid.Nil, true},
		{"covers", existing, Span{base.Add(-time.Hour), base.Add(2 * time.Hour)}, uuid.Nil, true},
		{"touches end", existing, Span{base.Add(time.Hour), base.Add(2 * time.Hour)}, uuid.Nil, false},
		{"touches start", existing, Span{base.Add(-time.Hour), base}, uuid.Nil, false},
		{"excluded self", existing, Span{base, base.Add(time.Hour)}, existingID, false},
		{
			name: "cancelled ignored",
			bands: []Band{{
				ID:        existingID,
				StartTime: base,
				EndTime:   base.Add(time.Hour),
				Status:    BandStatusCancelled,
			}},
			span: Span{base, base.Add(time.Hour)},
			want: false,
		},
		{
			name: "full still blocks",
			bands: []Band{{
				ID:        existingID,
				StartTime: base,
				EndTime:   base.Add(time.Hour),
				Status:    BandStatusFull,
			}},
			span: Span{base.Add(30 * time.Minute), base.Add(90 * time.Minute)},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasOverlap(tt.bands, tt.span, tt.exclude); got != tt.want {
				t.Fatalf("HasOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}
