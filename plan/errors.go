package plan

import "fmt"

// ValidationError reports a required field that is absent or malformed for
// the plan's action. A plan that fails validation queues no writes.
type ValidationError struct {
	Action Action
	Field  string
	Reason string // empty when the field is simply missing
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: invalid %s: %s", e.Action, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: missing %s", e.Action, e.Field)
}

// UnknownActionError reports an action tag outside the recognized set.
type UnknownActionError struct {
	Action Action
}

func (e *UnknownActionError) Error() string {
	if e.Action == "" {
		return "missing action"
	}
	return fmt.Sprintf("unknown action %q", e.Action)
}

func missing(a Action, field string) error {
	return &ValidationError{Action: a, Field: field}
}

func invalid(a Action, field, reason string) error {
	return &ValidationError{Action: a, Field: field, Reason: reason}
}
