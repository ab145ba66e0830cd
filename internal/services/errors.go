package services

import (
	"errors"
	"fmt"

	"deathfun-backend/internal/fairness"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("session not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrStoreUnavailable       = errors.New("session store unavailable")
	ErrConflict               = errors.New("concurrent update conflict")

	// ErrRandomSource is fatal for the create request that hit it.
	ErrRandomSource = fairness.ErrRandomSource

	// ErrStoreMiss is returned by a SessionStore when the key is absent or expired.
	ErrStoreMiss = errors.New("key not found")
)

type TransitionReason string

const (
	ReasonSessionEnded   TransitionReason = "session_ended"
	ReasonWrongRow       TransitionReason = "wrong_row"
	ReasonAlreadyClicked TransitionReason = "already_clicked"
	ReasonNothingToCash  TransitionReason = "no_cleared_row"
	ReasonNotEnded       TransitionReason = "session_not_ended"
)

// TransitionError is a rejected transition. The stored session is left untouched.
type TransitionError struct {
	SessionID   string
	Reason      TransitionReason
	ExpectedRow int
	GotRow      int
	Ended       bool
}

func (e *TransitionError) Error() string {
	switch e.Reason {
	case ReasonWrongRow:
		return fmt.Sprintf("session %s: click on row %d rejected, expected row %d", e.SessionID, e.GotRow, e.ExpectedRow)
	case ReasonAlreadyClicked:
		return fmt.Sprintf("session %s: row %d was already clicked", e.SessionID, e.GotRow)
	case ReasonSessionEnded:
		return fmt.Sprintf("session %s: round already ended", e.SessionID)
	case ReasonNothingToCash:
		return fmt.Sprintf("session %s: no cleared row to cash out", e.SessionID)
	case ReasonNotEnded:
		return fmt.Sprintf("session %s: round has not ended yet", e.SessionID)
	default:
		return fmt.Sprintf("session %s: %s", e.SessionID, e.Reason)
	}
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
