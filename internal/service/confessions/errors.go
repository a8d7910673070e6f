package confessions

import (
	"errors"
	"fmt"

	"confesapp/backend/internal/store"
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a request that is well formed but clashes with the
// current schedule state.
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string {
	return e.msg
}

func (e *ConflictError) Unwrap() error {
	return store.ErrConflict
}

func conflictError(msg string) error {
	return &ConflictError{msg: msg}
}

// NotFoundError covers both missing resources and resources the actor does
// not own.
type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string {
	return e.msg
}

func (e *NotFoundError) Unwrap() error {
	return store.ErrNotFound
}

func notFoundError(msg string) error {
	return &NotFoundError{msg: msg}
}

const (
	msgBandNotFound      = "band not found"
	msgBookingNotFound   = "booking not found"
	msgBandOverlap       = "band overlaps another band in your schedule"
	msgBandHasBookings   = "band already has active bookings"
	msgBandCancelled     = "band is cancelled"
	msgBandFull          = "band is full"
	msgBandEnded         = "band has already ended"
	msgAlreadyBooked     = "you already have a booking for this band"
	msgWindowClosed      = "booking window closed"
	msgBookingNotActive  = "booking is not active"
	msgBookingNotStarted = "booking has not taken place yet"
)

// translate maps store sentinels surfacing from a transaction onto the
// service error types, keeping anything else as an internal failure.
func translate(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var (
		vErr *ValidationError
		cErr *ConflictError
		nErr *NotFoundError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &cErr), errors.As(err, &nErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return notFoundError(notFoundMsg)
	case errors.Is(err, store.ErrConflict):
		return conflictError(msgBandOverlap)
	case errors.Is(err, store.ErrDuplicate):
		return conflictError(msgAlreadyBooked)
	case errors.Is(err, store.ErrCapacityExhausted):
		return conflictError(msgBandFull)
	}
	return err
}
