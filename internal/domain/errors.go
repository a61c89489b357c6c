package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyBusy     = errors.New("already busy")
	ErrForbidden       = errors.New("not a participant in this conversation")
	ErrDuplicateID     = errors.New("duplicate participant id")
	ErrParticipantBusy = errors.New("participant already in a conversation")
	ErrNotJoined       = errors.New("join the platform first")
	ErrSelfPairing     = errors.New("cannot start a conversation with yourself")
	ErrInvariant       = errors.New("coordinator invariant violated")
)

// IsValidation reports whether err is a client-caused, recoverable condition.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyBusy) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotJoined) ||
		errors.Is(err, ErrSelfPairing) ||
		errors.Is(err, ErrDisplayNameEmpty) ||
		errors.Is(err, ErrDisplayNameTooLong)
}
