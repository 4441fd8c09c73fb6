package errors

import "errors"

var (
	ErrUnauthorized    = errors.New("actor identity is missing")
	ErrInvalidInput    = errors.New("report input is invalid")
	ErrNotFound        = errors.New("report not found")
	ErrForbidden       = errors.New("actor is not allowed to perform this report operation")
	ErrDuplicateReport = errors.New("activity already has a report")
	ErrInvalidStatus   = errors.New("report status does not allow this operation")
	ErrPeriodClosed    = errors.New("accounting period is closed")
)
