package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrEmptyInput         = errors.New("novel text is empty")
	ErrSubmissionFailed   = errors.New("submission failed")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrJobFailed          = errors.New("job failed")
	ErrPollQueryFailed    = errors.New("status query failed")
	ErrControllerClosed   = errors.New("controller closed")
)
