package delivery

import "errors"

// Error taxonomy shared by the delivery engine and group operations.
// Handlers map these to HTTP statuses; everything else is a 500.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
)
