package health

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckFailed wraps the error of a failing check.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout reports a check still running when the readiness request timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrNotServing marks a component whose lifecycle state keeps it from
	// taking requests.
	ErrNotServing = errors.New("health: component not serving")
)

// StateError reports a component stuck in a state that cannot serve, such as
// a servlet that failed to initialize or is draining. Its state is copied
// into the Check of the readiness response.
type StateError struct {
	Component string
	State     string
	Cause     error
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("%s is %s", e.Component, e.State)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StateError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrNotServing}
	}
	return []error{ErrNotServing, e.Cause}
}
