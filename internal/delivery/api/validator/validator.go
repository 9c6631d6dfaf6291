// Package validator adapts go-playground/validator to echo.Validator.
package validator

import (
	"reflect"
	"strconv"
	"strings"

	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/errors"
	"coursebook/internal/i18n"

	"github.com/go-playground/validator/v10"
)

// RequestValidator checks the shape of bound request bodies. Violations are
// reported as a *domainerrors.ValidationError so they render like use case validation.
type RequestValidator struct {
	validate *validator.Validate
}

// New returns a RequestValidator. Field names are taken from the form tag.
func New() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}

		return name
	})
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}

	return &RequestValidator{validate: v}
}

// maxBytes limits a string by byte length; the stock max tag counts runes.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())

	return err == nil && len(fl.Field().String()) <= limit
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i any) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "request validation")
	}

	fields := make([]domainerrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldError(fe))
	}

	return domainerrors.NewValidationError(fields...)
}

func fieldError(fe validator.FieldError) domainerrors.FieldError {
	if fe.Field() == "password" && fe.Tag() == "maxbytes" {
		limit, _ := strconv.Atoi(fe.Param())

		return domainerrors.FieldError{Field: fe.Field(), Message: i18n.MsgPasswordMax, Args: []any{limit}}
	}

	return domainerrors.FieldError{Field: fe.Field(), Message: i18n.MsgFieldInvalid, Args: []any{fe.Field()}}
}
