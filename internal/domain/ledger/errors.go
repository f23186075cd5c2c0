package ledger

import "errors"

var (
	ErrSenderNotFound   = errors.New("sender not found")
	ErrReceiverNotFound = errors.New("receiver not found")
	ErrMemberNotFound   = errors.New("member not found")

	// ErrInsufficientBalance is returned when the balance cannot cover the debit
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount is returned when the point amount is below the minimum
	ErrInvalidAmount = errors.New("invalid point amount")

	// ErrSelfTransfer is returned when sender and receiver are the same member
	ErrSelfTransfer = errors.New("cannot transfer points to yourself")

	// ErrNegativeBalance is returned when an admin adjustment would go below zero
	ErrNegativeBalance = errors.New("resulting balance would be negative")

	// ErrBelowMinimumWithdrawal is returned when points < the configured floor
	ErrBelowMinimumWithdrawal = errors.New("below minimum withdrawal")

	// ErrReferenceConflict is returned when an idempotency key is reused with
	// a different amount
	ErrReferenceConflict = errors.New("idempotency key already used with a different amount")

	// ErrInvalidTransition is returned for a disallowed record status change
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrRecordNotFound = errors.New("record not found")
)
