package httputil

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yoozak/yoozak-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON name so clients can map errors back to inputs
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", validPhone)
	return v
}

// validPhone accepts 8 to 15 digits with an optional leading + and the usual
// separators (space, dash, dot) in between.
func validPhone(fl validator.FieldLevel) bool {
	digits := 0
	for i, r := range fl.Field().String() {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return digits >= 8 && digits <= 15
}

func jsonFieldName(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

// Validate validates a struct using go-playground/validator
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return errors.BadRequest(err.Error())
		}
		details := make(map[string]string)

		for _, e := range validationErrors {
			details[jsonFieldName(e)] = formatValidationError(e)
		}

		return errors.Validation(details)
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "gtfield":
		return "must be after " + e.Param()
	case "dive":
		return "contains an invalid entry"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "invalid value"
	}
}
