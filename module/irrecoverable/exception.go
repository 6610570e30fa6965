package irrecoverable

import (
	"errors"
	"fmt"
)

var errException = errors.New("unexpected exception")

// exception marks an error as unrecoverable: it is the symptom of a logic bug,
// not of bad input, and the caller must not try to resume the affected work.
type exception struct {
	err error
}

// NewException wraps err as an exception. A nil err stays nil.
func NewException(err error) error {
	if err == nil {
		return nil
	}
	return exception{err: err}
}

// NewExceptionf is like NewException, with fmt.Errorf semantics for the message.
func NewExceptionf(msg string, args ...interface{}) error {
	return exception{err: fmt.Errorf(msg, args...)}
}

func (e exception) Error() string {
	return fmt.Sprintf("%s: %s", errException.Error(), e.err.Error())
}

func (e exception) Unwrap() error {
	return e.err
}

// Is lets errors.Is match any exception against the package sentinel.
func (e exception) Is(target error) bool {
	return target == errException
}

// IsException returns true if err or any error it wraps is an exception.
func IsException(err error) bool {
	return errors.Is(err, errException)
}
