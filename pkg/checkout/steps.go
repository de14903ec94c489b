package checkout

import (
	"github.com/example/shopeasy/pkg/notify"
	"github.com/example/shopeasy/pkg/validation"
)

// FormValidator is the per-field validation of the checkout forms. A nil
// result means the form passed.
type FormValidator interface {
	Shipping(fields map[string]string) validation.FieldErrors
	Payment(fields map[string]string) validation.FieldErrors
}

// StepController moves a session between the checkout steps. Forward moves
// are gated by form validation and snapshot the form into the draft;
// backward moves are unconditional and touch nothing else.
type StepController struct {
	validator FormValidator
}

func NewStepController(v FormValidator) *StepController {
	return &StepController{validator: v}
}

// Advance moves s one step forward to target.
func (c *StepController) Advance(s *Session, target Step, fields map[string]string) error {
	if target != s.Step+1 {
		return ErrUndefinedTransition
	}

	switch target {
	case StepPayment:
		if errs := c.validator.Shipping(fields); len(errs) > 0 {
			return &ValidationError{Step: target, Fields: errs}
		}
		s.Draft.Shipping = copyFields(fields)

	case StepReview:
		if errs := c.validator.Payment(fields); len(errs) > 0 {
			if msg, ok := errs[validation.FieldPaymentMethod]; ok {
				s.notify(msg, notify.Error)
			}
			return &ValidationError{Step: target, Fields: errs}
		}
		s.Draft.Payment = copyFields(fields)
		s.Method = s.Draft.Payment[validation.FieldPaymentMethod]

	default:
		return ErrUndefinedTransition
	}

	s.Step = target
	return nil
}

// Retreat moves s back to any earlier step.
func (c *StepController) Retreat(s *Session, target Step) error {
	if target < StepShipping || target >= s.Step {
		return ErrUndefinedTransition
	}
	s.Step = target
	return nil
}
