package domain

import "errors"

var (
	// ErrInvalidTransition means the requested status change is not a
	// legal edge in the entity's state machine.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrPermissionDenied means the actor's role lacks authority for
	// the requested operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConcurrentModification means the entity's status changed
	// between read and write. Callers should re-fetch and retry if
	// still desired.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrSettlementFailure means payment creation or split computation
	// failed mid-transition; the triggering entity is left unchanged.
	ErrSettlementFailure = errors.New("settlement failed")

	// ErrDuplicatePayment means a payment already exists for the order.
	// Callers treat this as success: the existing payment stands.
	ErrDuplicatePayment = errors.New("payment already exists for order")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)
