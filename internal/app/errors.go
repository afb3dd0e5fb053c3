package app

import "errors"

// ErrNotFound and related errors describe engine and record-log failures.
var (
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflicting concurrent update")
	ErrForbidden               = errors.New("actor may not mutate workflow state")
	ErrGateNotSatisfied        = errors.New("approval gate not satisfied")
	ErrTerminalStatusViolation = errors.New("terminal status not allowed at this stage")
)
