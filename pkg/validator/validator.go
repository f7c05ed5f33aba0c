// Package validator registers the domain binding tags used by request models
// and turns validation failures into client-facing messages.
package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/phone"
	"github.com/lipanganya/doctime-api/pkg/security"
)

// FieldError is one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var customTags = map[string]validator.Func{
	"kephone": func(fl validator.FieldLevel) bool {
		return phone.Valid(phone.Normalize(fl.Field().String()))
	},
	"pin": func(fl validator.FieldLevel) bool {
		return security.ValidPin(fl.Field().String())
	},
	"case_status": func(fl validator.FieldLevel) bool {
		return model.CaseStatus(fl.Field().String()).Valid()
	},
	"payment_status": func(fl validator.FieldLevel) bool {
		return model.PaymentStatus(fl.Field().String()).Valid()
	},
	"user_role": func(fl validator.FieldLevel) bool {
		return model.UserRole(fl.Field().String()).Valid()
	},
}

// Register installs the domain tags and reports fields by their JSON names.
func Register(v *validator.Validate) error {
	for tag, fn := range customTags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return nil
}

// New returns a standalone validator using the binding tag.
func New() (*validator.Validate, error) {
	v := validator.New()
	v.SetTagName("binding")
	if err := Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Fields flattens err into per-field messages. It returns nil when err is not
// a validation failure.
func Fields(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// Message summarises err in one line.
func Message(err error) string {
	fields := Fields(err)
	if len(fields) == 0 {
		return "invalid request body"
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "kephone":
		return "must be a valid Kenyan phone number"
	case "pin":
		return "must be 4 to 6 digits"
	case "case_status":
		return "must be one of Upcoming, Completed, Cancelled, Referred, Invoiced, Paid"
	case "payment_status":
		return "must be one of Pending, Paid, Partially Paid, Pro Bono, Cancelled"
	case "user_role":
		return "must be one of Surgeon, Assistant Surgeon, Anaesthetist, Assistant Anaesthetist, Other"
	case "len":
		return "must be " + fe.Param() + " characters long"
	case "uuid":
		return "must be a valid UUID"
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return bound("at least", fe)
	case "max":
		return bound("at most", fe)
	}
	return "failed " + fe.Tag() + " validation"
}

func bound(qualifier string, fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return "must have " + qualifier + " " + fe.Param() + " characters"
	case reflect.Slice:
		return "must have " + qualifier + " " + fe.Param() + " items"
	}
	return "must be " + qualifier + " " + fe.Param()
}
