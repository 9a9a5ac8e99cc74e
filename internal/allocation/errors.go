package allocation

import (
	"errors"
	"fmt"
)

var (
	ErrTokenNotFound           = errors.New("token not found")
	ErrDoctorNotFound          = errors.New("doctor not found")
	ErrDoctorExists            = errors.New("doctor already registered")
	ErrUnknownClass            = errors.New("unknown token class")
	ErrInvalidInput            = errors.New("invalid input")
	ErrNotEmergency            = errors.New("token is not emergency class")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// InvalidStateError is returned when an operation is not allowed from the
// token's current state. It matches ErrInvalidStatusTransition.
type InvalidStateError struct {
	Op      string
	Current TokenState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s token in state %q", e.Op, e.Current)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}
