package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Payment method values submitted by the payment form.
const (
	MethodCredit = "credit"
	MethodPayPal = "paypal"
)

const FieldPaymentMethod = "paymentMethod"

const (
	msgRequired = "This field is required"
	msgEmail    = "Please enter a valid email address"
	msgPhone    = "Please enter a valid phone number"
	msgCard     = "Please enter a valid card number"
	msgExpiry   = "Please enter a valid expiry date (MM/YY)"
	msgCVV      = "Please enter a valid CVV"
	msgMethod   = "Please select a payment method"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	phoneNoise    = regexp.MustCompile(`[\s\-()]`)
	cardPattern   = regexp.MustCompile(`^\d{13,19}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)
	cvvPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

// FieldErrors maps a form field name to the message shown next to it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("invalid fields: %s", strings.Join(fields, ", "))
}

type ShippingForm struct {
	FirstName string `mapstructure:"firstName" validate:"required"`
	LastName  string `mapstructure:"lastName" validate:"required"`
	Email     string `mapstructure:"email" validate:"required,storefront_email"`
	Phone     string `mapstructure:"phone" validate:"required,phone"`
	Address   string `mapstructure:"address" validate:"required"`
	City      string `mapstructure:"city" validate:"required"`
	State     string `mapstructure:"state" validate:"required"`
	ZipCode   string `mapstructure:"zipCode" validate:"required"`
}

type CardForm struct {
	CardNumber string `mapstructure:"cardNumber" validate:"required,card_number"`
	ExpiryDate string `mapstructure:"expiryDate" validate:"required,expiry"`
	CVV        string `mapstructure:"cvv" validate:"required,cvv"`
	CardName   string `mapstructure:"cardName" validate:"required"`
}

var messages = map[string]string{
	"required":         msgRequired,
	"storefront_email": msgEmail,
	"phone":            msgPhone,
	"card_number":      msgCard,
	"expiry":           msgExpiry,
	"cvv":              msgCVV,
}

// Validator checks the shipping and payment forms of the checkout.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	mustRegister(v.validate, "storefront_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	mustRegister(v.validate, "phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(phoneNoise.ReplaceAllString(fl.Field().String(), ""))
	})
	mustRegister(v.validate, "card_number", func(fl validator.FieldLevel) bool {
		return cardPattern.MatchString(strings.ReplaceAll(fl.Field().String(), " ", ""))
	})
	mustRegister(v.validate, "expiry", func(fl validator.FieldLevel) bool {
		return v.notExpired(fl.Field().String())
	})
	mustRegister(v.validate, "cvv", func(fl validator.FieldLevel) bool {
		return cvvPattern.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// notExpired accepts MM/YY when the card is valid through the end of that month.
func (v *Validator) notExpired(value string) bool {
	m := expiryPattern.FindStringSubmatch(value)
	if m == nil {
		return false
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	now := v.now()
	endOfMonth := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	return endOfMonth.After(now)
}

// Shipping validates the shipping form. A nil result means the form passed.
func (v *Validator) Shipping(fields map[string]string) FieldErrors {
	var form ShippingForm
	if err := decode(fields, &form); err != nil {
		return FieldErrors{"form": err.Error()}
	}
	return v.check(form)
}

// Payment validates the payment form: a method must be chosen, and the
// credit method also needs a complete card.
func (v *Validator) Payment(fields map[string]string) FieldErrors {
	switch strings.TrimSpace(fields[FieldPaymentMethod]) {
	case MethodPayPal:
		return nil
	case MethodCredit:
		var form CardForm
		if err := decode(fields, &form); err != nil {
			return FieldErrors{"form": err.Error()}
		}
		return v.check(form)
	default:
		return FieldErrors{FieldPaymentMethod: msgMethod}
	}
}

func (v *Validator) check(form interface{}) FieldErrors {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"form": err.Error()}
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = msgRequired
		}
		out[fe.Field()] = msg
	}
	return out
}

func decode(fields map[string]string, dst interface{}) error {
	trimmed := make(map[string]string, len(fields))
	for k, val := range fields {
		trimmed[k] = strings.TrimSpace(val)
	}
	if err := mapstructure.Decode(trimmed, dst); err != nil {
		return fmt.Errorf("failed to decode form: %w", err)
	}
	return nil
}
