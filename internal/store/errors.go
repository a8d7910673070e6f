package store

import "errors"

var (
	ErrConflict  = errors.New("conflict")
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	// ErrCapacityExhausted is returned when a conditional occupancy update
	// matched no row because the band had no seat left.
	ErrCapacityExhausted = errors.New("capacity exhausted")
)
