package bf

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// ErrUnexpectedLoopEnd is returned when a ']' is executed with no open loop
// on the stack. The bracket counts can match while the nesting order is wrong,
// so this is only detectable at runtime.
var ErrUnexpectedLoopEnd error = UnexpectedLoopEndError{}

// UnexpectedLoopEndError is the type of ErrUnexpectedLoopEnd.
type UnexpectedLoopEndError struct{}

func (UnexpectedLoopEndError) Error() string {
	return "unexpected end of loop"
}

func (UnexpectedLoopEndError) Unwrap() error {
	return errdefs.ErrInvalidArgument
}

// UnbalancedBracketsError is returned by Validate when the program has a
// different number of '[' and ']'.
type UnbalancedBracketsError struct {
	Open  int
	Close int
}

func (e *UnbalancedBracketsError) Error() string {
	return fmt.Sprintf("unequal amount of opening and closing brackets (#[: %d, #]: %d)", e.Open, e.Close)
}

func (e *UnbalancedBracketsError) Unwrap() error {
	return errdefs.ErrInvalidArgument
}

// InvalidAddressError is returned when an instruction touches the cell at the
// one-past-the-end address of the tape.
type InvalidAddressError struct {
	Operation string
	Address   int
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("tried %s invalid memory address %d", e.Operation, e.Address)
}

func (e *InvalidAddressError) Unwrap() error {
	return errdefs.ErrOutOfRange
}

// ResourceAcquisitionError is returned when the loop stack cannot be allocated.
type ResourceAcquisitionError struct {
	Capacity int
	Cause    error
}

func (e *ResourceAcquisitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("allocating loop stack of %d entries: %v", e.Capacity, e.Cause)
	}
	return fmt.Sprintf("allocating loop stack of %d entries", e.Capacity)
}

func (e *ResourceAcquisitionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{errdefs.ErrResourceExhausted, e.Cause}
	}
	return []error{errdefs.ErrResourceExhausted}
}

var errLoopLimit = errors.New("loop stack limit exceeded")

// StreamError is a failure of the program's input or output stream.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() []error {
	return []error{errdefs.ErrUnavailable, e.Err}
}

func inputError(err error) error {
	return &StreamError{Op: "reading input", Err: err}
}

func outputError(err error) error {
	return &StreamError{Op: "writing output", Err: err}
}
