package shared

import "errors"

var (
	// ErrNotFound indicates the record does not exist or belongs to another store.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition occurs when an action violates the status workflow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidQuantity indicates a negative receipt or one above the remaining quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrCodeGenerationExhausted occurs when no unique document code could be produced.
	ErrCodeGenerationExhausted = errors.New("code generation exhausted")
	// ErrValidation indicates a malformed payload.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateRequest indicates the idempotency key was already processed.
	ErrDuplicateRequest = errors.New("duplicate request")
)
