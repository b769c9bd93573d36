package action

import (
	"errors"
	"fmt"
)

// DuplicateActionError is returned when a name is registered twice.
type DuplicateActionError struct {
	Name  string
	Scope Scope
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action %q already registered with scope %q", e.Name, e.Scope)
}

// IsDuplicateActionError checks if an error is a registration collision.
func IsDuplicateActionError(err error) bool {
	var target *DuplicateActionError
	return errors.As(err, &target)
}

// InvalidScopeError is returned when an action is registered with a
// scope outside the declared set.
type InvalidScopeError struct {
	Name  string
	Scope Scope
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("action %q has invalid scope %q", e.Name, e.Scope)
}

// UnknownActionError is returned when a name was never registered.
// Closest carries the nearest registered name when one is close enough
// to look like a typo.
type UnknownActionError struct {
	Name    string
	Closest string
}

func (e *UnknownActionError) Error() string {
	if e.Closest != "" {
		return fmt.Sprintf("unknown action %q (did you mean %q?)", e.Name, e.Closest)
	}
	return fmt.Sprintf("unknown action %q", e.Name)
}

// IsUnknownActionError checks if an error is a fire or resolve against
// an unregistered name.
func IsUnknownActionError(err error) bool {
	var target *UnknownActionError
	return errors.As(err, &target)
}

// SubscriberError records a panic recovered from a listener. It is
// logged by the channel that caught it and never returned to the firer.
type SubscriberError struct {
	Action       string
	SubscriberID uint64
	Recovered    any
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %d for action %q panicked: %v", e.SubscriberID, e.Action, e.Recovered)
}

// TransportError wraps a failure to hand an envelope to the transport.
// Forwarding is fire-and-forget, so these are logged rather than
// returned.
type TransportError struct {
	Op     string
	Action string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s for action %q: %v", e.Op, e.Action, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
