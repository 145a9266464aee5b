package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError describes a single failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %q failed on rule %q", e.Field, e.Tag)
}

// Struct validates a struct against its `validate` tags and returns one
// error per failed field, or nil when everything passes.
func Struct(v interface{}) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Tag: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fe.StructNamespace(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// First validates a struct and collapses any failures into a single error.
func First(v interface{}) error {
	errs := Struct(v)
	if len(errs) == 0 {
		return nil
	}

	parts := make([]string, len(errs))
	for i, fe := range errs {
		parts[i] = fe.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, "; "))
}
