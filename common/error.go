package common

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound          = errors.New("job not found")
	ErrNotDeadLettered      = errors.New("job is not dead-lettered")
	ErrLockLost             = errors.New("job lock lost")
	ErrHandlerNotRegistered = errors.New("no handler registered for queue type")
	ErrEmptyQueueType       = errors.New("queue type cannot be empty")
	ErrNilHandler           = errors.New("handler cannot be nil")
	ErrHandlerExists        = errors.New("handler already registered for queue type")
)

type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}

// PersistenceError reports a failed operation against the job store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
