package conference

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParticipant rejects a join with missing identity fields.
	ErrInvalidParticipant = errors.New("invalid participant")

	// ErrMediaUnavailable means capture permission was denied or the
	// device is absent.
	ErrMediaUnavailable = errors.New("media unavailable")

	// ErrSignalingUnavailable means the signaling transport is closed
	// or unreachable.
	ErrSignalingUnavailable = errors.New("signaling unavailable")

	// ErrPeerNegotiationFailed is an ICE or negotiation failure for one
	// peer session.
	ErrPeerNegotiationFailed = errors.New("peer negotiation failed")

	// ErrNotInRoom means the operation needs an active room membership.
	ErrNotInRoom = errors.New("not in a room")
)

// ConferenceError annotates a failure with the operation that produced it.
type ConferenceError struct {
	Op      string
	Err     error
	Details string
}

func (e *ConferenceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConferenceError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *ConferenceError {
	return &ConferenceError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *ConferenceError {
	return &ConferenceError{Op: op, Err: err, Details: details}
}
