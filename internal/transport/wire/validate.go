package wire

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = NewValidator()

// NewValidator returns a validator reading the `binding` tags gin uses and
// reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	RegisterJSONNames(v)
	return v
}

func RegisterJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}

// Validate checks a request struct against its binding tags.
func Validate(req any) error {
	return validate.Struct(req)
}

// ValidationMessage renders the first failed rule of a validator error. ok is
// false for errors that did not come from the validator.
func ValidationMessage(err error) (msg string, ok bool) {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return "", false
	}
	fe := ves[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required", true
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param()), true
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param()), true
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param()), true
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param()), true
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")), true
	case "uuid":
		return field + " must be a UUID", true
	}
	return field + " is invalid", true
}
