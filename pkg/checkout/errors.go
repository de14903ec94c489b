package checkout

import (
	"errors"
	"fmt"

	"github.com/example/shopeasy/pkg/validation"
)

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrUndefinedTransition = errors.New("undefined checkout step transition")
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrStaleSession        = errors.New("event does not belong to the active checkout session")
	ErrWrongStep           = errors.New("action not allowed at this checkout step")
	ErrNoPaymentMethod     = errors.New("no payment method selected")
	ErrCaptureFailed       = errors.New("payment capture failed")
)

// ValidationError reports the form fields that blocked a step transition.
type ValidationError struct {
	Step   Step
	Fields validation.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d: %s", e.Step, e.Fields.Error())
}
