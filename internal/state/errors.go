package state

import "errors"

var (
	ErrRemoteUnavailable   = errors.New("remote service unavailable")
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidTrip         = errors.New("invalid trip")
	ErrTripAlreadyActive   = errors.New("a trip is already active")
	ErrNoActiveTrip        = errors.New("no active trip")
	ErrNotSignedIn         = errors.New("not signed in")
	ErrInvalidScreen       = errors.New("invalid screen")
	ErrInvalidLanguage     = errors.New("invalid language")
	// ErrSuperseded is returned when a sign-out or another sign-in replaced
	// the session while a remote call was in flight; its result was discarded.
	ErrSuperseded = errors.New("session changed during request")
)

// UserMessage converts an operation error into the text shown to the user
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRemoteUnavailable):
		return "Something went wrong. Please try again."
	case errors.Is(err, ErrEmailTaken):
		return "This email is already registered. Please sign in."
	case errors.Is(err, ErrInvalidRegistration):
		return "Please fill in email, password (at least 6 characters) and display name."
	case errors.Is(err, ErrInvalidTrip):
		return "Choose a trip duration and at least one destination."
	case errors.Is(err, ErrTripAlreadyActive):
		return "Finish or cancel your current trip first."
	case errors.Is(err, ErrNoActiveTrip):
		return "There is no active trip."
	case errors.Is(err, ErrNotSignedIn):
		return "Please sign in first."
	case errors.Is(err, ErrInvalidScreen):
		return "Unknown screen."
	case errors.Is(err, ErrInvalidLanguage):
		return "Unsupported language."
	case errors.Is(err, ErrSuperseded):
		return "Your session changed. Please try again."
	}
	return "Something went wrong. Please try again."
}
