package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic turns a value returned by recover() into a fatal ErrInternal
// carrying the goroutine stack. It returns nil when nothing was recovered.
func RecoverPanic(recovered interface{}) error {
	if recovered == nil {
		return nil
	}

	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", recovered)
	}

	return ErrInternal.
		WithCause(cause).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack())).
		AsFatal()
}
