package game

import "errors"

var (
	// ErrUnauthorized is returned when an operation requires the admin
	// capability and the requester does not hold it.
	ErrUnauthorized = errors.New("unauthorized: admin access required")

	// ErrInvalidRating is returned when a submitted rating is outside [1,5].
	ErrInvalidRating = errors.New("invalid rating: must be between 1 and 5")

	// ErrInvalidImport is returned when an import document is missing the
	// chips array or the votes object.
	ErrInvalidImport = errors.New("invalid import document")
)
