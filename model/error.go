package model

// Error is used for constant errors.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

const (
	ErrEmptyCommand   Error = "empty backend command"
	ErrNoWorkDir      Error = "working directory not found"
	ErrNoPatterns     Error = "no watch patterns configured"
	ErrInvalidPort    Error = "port out of range"
	ErrAlreadyStarted Error = "launcher already started"
	ErrNothingToRun   Error = "neither backend nor proxy enabled"
)
