package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxJobTypeLength = 120

// Validator checks request bodies before they reach the estimator.
type Validator struct {
	validator *validator.Validate
}

// NewValidator returns a Validator with the request rules registered.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("job_type", jobTypeValidator)
	return &Validator{validator: v}
}

// Struct validates s and flattens field errors into a single readable error.
func (v *Validator) Struct(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New("invalid request: " + strings.Join(msgs, "; "))
}

func jobTypeValidator(fl validator.FieldLevel) bool {
	name := strings.TrimSpace(fl.Field().String())
	return name != "" && len(name) <= maxJobTypeLength
}
