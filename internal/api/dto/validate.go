package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags and reports violations as field errors keyed by json name.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("invalid request", nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
	}
	return apperrors.NewValidationError("invalid request", details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
