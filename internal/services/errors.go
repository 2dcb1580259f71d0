package services

import (
	"errors"
	"net/http"
)

// Business errors surfaced by the matching, session and ledger services.
// Nothing here is retried internally; every failure reflects a broken rule
// or a lost race and goes straight back to the caller.
var (
	// ErrInvalidRequest covers malformed input, self-referential matches
	// and non-positive amounts.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned both when an entity does not exist and when
	// it exists but is not in the state or ownership the operation
	// requires. Collapsing the two avoids leaking entity existence.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRequest means a match already exists between the pair,
	// in either direction.
	ErrDuplicateRequest = errors.New("connection request already exists")

	// ErrInsufficientCredits means a balance check failed at session
	// creation, acceptance or completion.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAlreadyRated means a second rating attempt on a session.
	ErrAlreadyRated = errors.New("session already rated")

	// ErrConflict means a conditional state transition lost a race; the
	// caller may re-fetch and decide.
	ErrConflict = errors.New("conflict")
)

// httpStatus maps a business error to its HTTP status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateRequest), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInsufficientCredits), errors.Is(err, ErrAlreadyRated):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// SendBusinessError writes err as the standard JSON error envelope, hiding
// internals behind a generic message for unexpected failures.
func SendBusinessError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "An Internal Error Occurred"
	}
	SendErrorResponse(w, msg, status, nil)
}
