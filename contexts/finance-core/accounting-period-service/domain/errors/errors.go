package errors

import "errors"

var (
	ErrUnauthorized  = errors.New("no authenticated actor")
	ErrInvalidInput  = errors.New("accounting period input is invalid")
	ErrNotFound      = errors.New("accounting period not found")
	ErrForbidden     = errors.New("actor may not manage accounting periods")
	ErrOverlap       = errors.New("accounting period overlaps an existing period")
	ErrInvalidStatus = errors.New("accounting period status does not allow this transition")
)
