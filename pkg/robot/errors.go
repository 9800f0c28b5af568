package robot

import "fmt"

// ReadError reports a failed feedback query for one motor. The transport error
// is kept as the cause; nothing in this package retries.
type ReadError struct {
	Motor MotorName
	ID    int
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s (id %d): %v", e.Motor, e.ID, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failed position or torque command.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
