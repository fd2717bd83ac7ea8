package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized indicates no authenticated user for a mutating operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates a referenced entity is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or missing arguments.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the row changed underneath a compare-and-swap write.
	ErrConflict = errors.New("concurrent modification")
	// ErrFreezeAlreadyUsed is returned when the weekly streak freeze was already spent.
	ErrFreezeAlreadyUsed = errors.New("streak freeze already used this week")
	// ErrStreakNotAtRisk is returned when a freeze is requested for a healthy streak.
	ErrStreakNotAtRisk = errors.New("streak is not at risk")
)

// NotFound tags a missing entity.
func NotFound(what, id string) error {
	return errors.Join(ErrNotFound, fmt.Errorf("%s %s not found", what, id))
}

// Invalid tags a validation failure.
func Invalid(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

// Message returns the human-facing part of err, dropping sentinel prefixes
// added by NotFound and Invalid.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		parts := joined.Unwrap()
		if len(parts) == 2 && (parts[0] == ErrNotFound || parts[0] == ErrValidation) {
			return parts[1].Error()
		}
	}
	return err.Error()
}
