package task

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput converts validator failures into a *ValidationError keyed by
// json field name.
func (s *Store) validateInput(in CreateInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("task: validate: %w", err)
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.add(fe.Field(), describe(fe))
	}
	return ve
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return fmt.Sprintf("must be one of %s, got %q", fe.Param(), fe.Value())
	default:
		return "failed " + fe.Tag()
	}
}
