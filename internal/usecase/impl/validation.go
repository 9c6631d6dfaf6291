// Package impl contains the implementation of the application's business logic.
package impl

import (
	"strconv"
	"strings"

	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/errors"
	"coursebook/internal/i18n"

	"github.com/go-playground/validator/v10"
)

var inputValidator = newInputValidator()

// newInputValidator adds maxbytes, a length limit in bytes. The stock max tag counts runes,
// and bcrypt rejects passwords over 72 bytes.
func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}

	return v
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())

	return err == nil && len(fl.Field().String()) <= limit
}

// validateInput checks the struct tags of input and reports every violation as a field error.
func validateInput(input any) []domainerrors.FieldError {
	err := inputValidator.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []domainerrors.FieldError{{Field: "input", Message: i18n.MsgFieldInvalid, Args: []any{"input"}}}
	}

	fields := make([]domainerrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, toFieldError(fe))
	}

	return fields
}

func toFieldError(fe validator.FieldError) domainerrors.FieldError {
	field := strings.ToLower(fe.Field())

	switch field + "." + fe.Tag() {
	case "name.required":
		return domainerrors.FieldError{Field: field, Message: i18n.MsgNameRequired}
	case "email.required":
		return domainerrors.FieldError{Field: field, Message: i18n.MsgEmailRequired}
	case "email.email":
		return domainerrors.FieldError{Field: field, Message: i18n.MsgEmailInvalid}
	case "password.required":
		return domainerrors.FieldError{Field: field, Message: i18n.MsgPasswordRequired}
	case "password.min":
		minLen, err := strconv.Atoi(fe.Param())
		if err != nil {
			minLen = 0
		}

		return domainerrors.FieldError{Field: field, Message: i18n.MsgPasswordMin, Args: []any{minLen}}
	case "password.maxbytes":
		maxLen, err := strconv.Atoi(fe.Param())
		if err != nil {
			maxLen = 0
		}

		return domainerrors.FieldError{Field: field, Message: i18n.MsgPasswordMax, Args: []any{maxLen}}
	default:
		return domainerrors.FieldError{Field: field, Message: i18n.MsgFieldInvalid, Args: []any{field}}
	}
}

func hasFieldError(fields []domainerrors.FieldError, field string) bool {
	for _, f := range fields {
		if f.Field == field {
			return true
		}
	}

	return false
}

// emailTakenError is how a duplicate email surfaces, whether it was caught by the lookup or by the unique constraint.
func emailTakenError() *domainerrors.ValidationError {
	return domainerrors.NewValidationError(
		domainerrors.FieldError{Field: "email", Message: i18n.MsgEmailTaken},
	).WithCause(domainerrors.ErrDuplicateEmail)
}

// outcomeOf maps an operation result to a metrics label.
func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.ErrorCode())
	}

	return "error"
}
