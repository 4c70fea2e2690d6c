package models

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrTransport       = errors.New("transport failure")
	ErrOperationFailed = errors.New("operation failed")
)

// OrderError classifies a failure of an order operation.
type OrderError struct {
	Kind    error
	Op      string
	OrderID string
	Err     error
}

func (e *OrderError) Error() string {
	msg := e.Op
	if e.OrderID != "" {
		msg = fmt.Sprintf("%s %s", msg, e.OrderID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

func (e *OrderError) Is(target error) bool {
	return target == e.Kind
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// Reason is the human-readable cause shown in notifications.
func (e *OrderError) Reason() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// Classify wraps err as an OrderError of kind unless it already carries a kind.
func Classify(kind error, op, orderID string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OrderError
	if errors.As(err, &oe) {
		return err
	}
	return &OrderError{Kind: kind, Op: op, OrderID: orderID, Err: err}
}

// ReasonOf extracts the human-readable cause of any error.
func ReasonOf(err error) string {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Reason()
	}
	return err.Error()
}
