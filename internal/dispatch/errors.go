package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperationType is matched by *OperationTypeError.
	ErrInvalidOperationType = errors.New("invalid operation type")

	// ErrInvalidOperation is matched by *OperationError.
	ErrInvalidOperation = errors.New("invalid operation")
)

// OperationTypeError reports a service kind that is not blob, queue or table.
type OperationTypeError struct {
	Kind string
}

func (e *OperationTypeError) Error() string {
	return fmt.Sprintf("invalid operation type %q", e.Kind)
}

func (e *OperationTypeError) Is(target error) bool {
	return target == ErrInvalidOperationType
}

// OperationError reports a method that the resolved service does not expose.
type OperationError struct {
	Kind   string
	Method string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("invalid operation %q for %s service", e.Method, e.Kind)
}

func (e *OperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}
