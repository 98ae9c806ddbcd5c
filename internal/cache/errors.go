package cache

import "fmt"

// ComputeError is returned to every caller of a flight whose computation
// failed. It wraps the cause, so errors.Is and errors.As see through it.
type ComputeError struct {
	Key string
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("computing %q: %v", e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}
