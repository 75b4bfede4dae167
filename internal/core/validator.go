package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"forkfire/internal/types"
)

// Validator wraps go-playground/validator for request body validation.
// Handlers call ValidateStruct after DecodeJSON; field failures come back as
// a single AppError with field-keyed details.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator using JSON tag names in error output so
// that reported fields match the wire format, not Go identifiers.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates dst against its `validate` tags. On failure it
// returns a *types.AppError with code "validation_missing_required_field"
// and a details map of field -> violated rule.
func (v *Validator) ValidateStruct(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// Programming error: dst was not a struct. Surface as internal.
		v.logger.Error("validator misuse", "error", invalid.Error())
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	details := make(map[string]any)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request validation failed",
		err,
		details,
	)
}
