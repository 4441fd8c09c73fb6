package errors

import "errors"

var (
	ErrUnauthorized         = errors.New("no authenticated actor")
	ErrInvalidInput         = errors.New("ledger transaction input is invalid")
	ErrNotFound             = errors.New("ledger transaction not found")
	ErrForbidden            = errors.New("actor may not mutate this transaction")
	ErrPeriodClosed         = errors.New("accounting period is closed")
	ErrTransactionImmutable = errors.New("system-generated transaction is immutable")
)
