package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrTimeConflict = errors.New("reservation time conflicts with an approved reservation")

	ErrInvalidTimeRange = errors.New("end time must be after start time")
)
