package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/leave-engine/generic"
)

// maxBodyBytes bounds request bodies; every request type here is small.
const maxBodyBytes = 1 << 20

// requestValidator runs validator/v10 tags and converts failures into
// *generic.ValidationError so statusFor maps them to 400.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// financial_year: "YYYY-YYYY" with consecutive years.
	_ = v.RegisterValidation("financial_year", func(fl validator.FieldLevel) bool {
		return generic.ValidateYearFormat(fl.Field().String())
	})

	return &requestValidator{v: v}
}

// Struct validates s. Every failing field becomes one ValidationError; the
// result is their errors.Join.
func (rv *requestValidator) Struct(s any) error {
	err := rv.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &generic.ValidationError{Message: err.Error()}
	}
	errs := make([]error, len(fieldErrs))
	for i, fe := range fieldErrs {
		errs[i] = &generic.ValidationError{Field: fe.Field(), Message: describe(fe)}
	}
	return errors.Join(errs...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "financial_year":
		return "must be formatted YYYY-YYYY with consecutive years"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "failed " + fe.Tag() + " validation"
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return &generic.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return h.validate.Struct(dst)
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h *Handler) decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return &generic.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return h.validate.Struct(dst)
}

// parseDateField parses a validated YYYY-MM-DD field.
func parseDateField(field, value string) (generic.TimePoint, error) {
	tp, err := generic.ParseDate(value)
	if err != nil {
		return generic.TimePoint{}, &generic.ValidationError{Field: field, Message: err.Error()}
	}
	return tp, nil
}
