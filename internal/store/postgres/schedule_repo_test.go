package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"confesapp/backend/internal/store"
)

func TestMapWriteError(t *testing.T) {
	plain := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "overlap exclusion",
			err:  &pgconn.PgError{Code: "23P01", ConstraintName: "bands_no_overlap"},
			want: store.ErrConflict,
		},
		{
			name: "active booking unique index",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "bookings_one_active_per_faithful"}),
			want: store.ErrDuplicate,
		},
		{
			name: "primary key",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "bands_pkey"},
			want: store.ErrDuplicate,
		},
		{
			name: "missing band",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "bookings_band_id_fkey"},
			want: store.ErrNotFound,
		},
		{
			name: "other exclusion constraint",
			err:  &pgconn.PgError{Code: "23P01", ConstraintName: "something_else"},
			want: nil,
		},
		{
			name: "not a pg error",
			err:  plain,
			want: plain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapWriteError(tt.err)
			if tt.want == nil {
				if errors.Is(got, store.ErrConflict) || errors.Is(got, store.ErrDuplicate) {
					t.Fatalf("mapWriteError = %v, want passthrough", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapWriteError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("len(migrations) = %d, want >= 2", len(entries))
	}

	var all strings.Builder
	for _, e := range entries {
		b, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+e.Name())
		if err != nil {
			t.Fatalf("ReadFile(%s) error: %v", e.Name(), err)
		}
		up, err := extractGooseUp(string(b))
		if err != nil {
			t.Fatalf("%s: %v", e.Name(), err)
		}
		all.WriteString(up)
	}

	for _, name := range []string{constraintBandsNoOverlap, constraintOneActivePerFaithful} {
		if !strings.Contains(all.String(), name) {
			t.Fatalf("migrations do not define %s", name)
		}
	}
}
