package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidSchedule     = errors.New("invalid installment schedule")
	ErrOverpayment         = errors.New("payment exceeds remaining balance")
	ErrConcurrencyConflict = errors.New("concurrent ledger update lost")
	ErrGatewayVerification = errors.New("gateway webhook verification failed")
	ErrGatewayUnavailable  = errors.New("gateway communication failed")
	ErrLockUnavailable     = errors.New("could not acquire lock")

	// Infrastructure errors surfaced through repository ports
	ErrInvalidExecContext = errors.New("invalid transaction handle")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
