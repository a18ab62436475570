// Package validation wraps go-playground/validator with the field rules used
// by the attendance API and converts failures into field-level messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Roll numbers issued at creation time are exactly eight digits.
	rollNumberPattern = regexp.MustCompile(`^\d{8}$`)
	// Record-level roll numbers accept uppercase letters, digits and hyphens.
	rollCodePattern = regexp.MustCompile(`^[A-Z0-9-]+$`)
	phonePattern    = regexp.MustCompile(`^\d{10}$`)
)

// FieldError describes a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects field-level failures for one request.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, item := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", item.Field, item.Message))
	}
	return strings.Join(parts, "; ")
}

// AsErrors extracts field errors from err, if it carries any.
func AsErrors(err error) (Errors, bool) {
	var fieldErrors Errors
	if errors.As(err, &fieldErrors) {
		return fieldErrors, true
	}
	return nil, false
}

// New returns a validator with the attendance-specific tags registered.
// Field names are reported using their json names.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "roll_number", rollNumberPattern)
	mustRegister(v, "roll_code", rollCodePattern)
	mustRegister(v, "phone", phonePattern)

	return v
}

func mustRegister(v *validator.Validate, tag string, pattern *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Collector accumulates failures from struct and single-value checks so a
// request can report every bad field at once.
type Collector struct {
	validate *validator.Validate
	errs     Errors
}

// NewCollector starts an empty collection.
func NewCollector(v *validator.Validate) *Collector {
	return &Collector{validate: v}
}

// Struct validates the tagged fields of payload.
func (c *Collector) Struct(payload interface{}) {
	c.append("", c.validate.Struct(payload))
}

// Var validates a single value under the given field name.
func (c *Collector) Var(field string, value interface{}, tag string) {
	c.append(field, c.validate.Var(value, tag))
}

// Add records a failure that is not expressible as a validator tag.
func (c *Collector) Add(field, message string) {
	c.errs = append(c.errs, FieldError{Field: field, Message: message})
}

// Err returns the collected failures, or nil when there are none.
func (c *Collector) Err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}

func (c *Collector) append(field string, err error) {
	if err == nil {
		return
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		c.Add(field, err.Error())
		return
	}

	for _, fe := range validationErrors {
		name := fe.Field()
		if name == "" {
			name = field
		}
		c.errs = append(c.errs, FieldError{Field: name, Message: message(name, fe)})
	}
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "roll_number":
		return "roll number must be exactly 8 digits"
	case "roll_code":
		return "roll number must contain only uppercase letters, numbers, and hyphens"
	case "phone":
		return "phone number must be exactly 10 digits"
	case "gt":
		return fmt.Sprintf("%s must be positive", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
	}
}
