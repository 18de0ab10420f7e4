package domain

import (
	"context"
	"errors"
	"fmt"
)

type Service interface {
	Create(context.Context, CreateOrderRequest) (OrderResult, error)
}

var ErrInvalidName = errors.New("invalid_name")

// StepError reports the step an order stopped at. Records created by
// earlier steps are left in place.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("order %s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
