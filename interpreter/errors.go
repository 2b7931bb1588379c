package interpreter

import (
	"errors"
	"fmt"

	"github.com/witanlabs/voicesheet/plan"
	"github.com/witanlabs/voicesheet/workbook"
)

// AccessError reports a workbook failure while executing a plan. Nothing the
// plan queued is left applied.
type AccessError struct {
	Action plan.Action
	Op     string // "read", "commit" or the failing workbook operation
	Err    error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Action, e.Op, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

func accessError(action plan.Action, phase string, err error) *AccessError {
	var opErr *workbook.OpError
	if errors.As(err, &opErr) {
		return &AccessError{Action: action, Op: opErr.Op, Err: opErr.Err}
	}
	return &AccessError{Action: action, Op: phase, Err: err}
}
