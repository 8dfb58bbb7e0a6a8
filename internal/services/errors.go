package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailRequired rejects a blank identity before format validation.
	ErrEmailRequired = errors.New("email is required")
	// ErrEmailFormat rejects an identity that fails the email grammar.
	ErrEmailFormat = errors.New("email format is invalid")
	// ErrSessionNotFound means the session ID is unknown or already evicted.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoundFinished rejects reveals on a session in a terminal phase.
	ErrRoundFinished = errors.New("round already finished")
	// ErrCooldownActive rejects reveals while a failed attempt is still on
	// display.
	ErrCooldownActive = errors.New("cooldown active")
	// ErrCellUnavailable rejects revealing a cell that is out of range,
	// already solved, or already face-up in the current attempt.
	ErrCellUnavailable = errors.New("cell cannot be revealed")
	// ErrRevealLimit rejects a fourth reveal before resolution cleared the
	// current attempt.
	ErrRevealLimit = errors.New("three cells already revealed")
)

// QuotaExceededError is returned when a non-exempt identity has used up its
// daily attempts.
type QuotaExceededError struct {
	Email string
	Count int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily attempt limit reached for %s (%d used)", e.Email, e.Count)
}

// SchemaConflictError means the existing result log file does not match the
// expected column layout. The store is left untouched; recovery (archive and
// recreate) is an explicit administrative action.
type SchemaConflictError struct {
	Path   string
	Detail string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("result log %s has an incompatible format: %s", e.Path, e.Detail)
}
