package config

import (
	"fmt"
	"strings"

	"keymaker/internal/crypto"
	"keymaker/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Validator checks settings before any engine is built.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a Validator with the keymaker-specific rules
// registered: "pow2" (integer power of two greater than one) and "backend"
// (registered KDF backend name).
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("pow2", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n > 1 && n&(n-1) == 0
	})
	_ = v.RegisterValidation("backend", func(fl validator.FieldLevel) bool {
		_, err := crypto.Lookup(fl.Field().String())
		return err == nil
	})
	return &Validator{validate: v}
}

// Validate returns a *errors.ConfigError listing every invalid setting.
func (v *Validator) Validate(s *Settings) error {
	if s == nil {
		return errors.NewConfigError("settings", fmt.Errorf("settings are nil"))
	}

	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewConfigError("settings", err)
	}

	fields := make([]string, 0, len(validationErrs))
	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		fields = append(fields, fieldKey(e))
		messages = append(messages, formatValidationError(e))
	}
	return errors.NewConfigError(strings.Join(fields, ","),
		fmt.Errorf("invalid settings:\n  - %s", strings.Join(messages, "\n  - ")))
}

// fieldKey maps a validation error back to its flag name.
func fieldKey(e validator.FieldError) string {
	if f, ok := settingsFields[e.StructField()]; ok {
		return f
	}
	return strings.ToLower(e.StructField())
}

var settingsFields = map[string]string{
	"Backend":         KeyBackend,
	"Cipher":          KeyCipher,
	"Format":          KeyFormat,
	"KeyLength":       KeyKeyLength,
	"ScryptN":         KeyScryptN,
	"ScryptR":         KeyScryptR,
	"ScryptP":         KeyScryptP,
	"PasswordLength":  KeyPasswordLength,
	"PINLength":       KeyPINLength,
	"Attempts":        KeyAttempts,
	"AttemptInterval": KeyAttemptInterval,
	"LogLevel":        KeyLogLevel,
}

func formatValidationError(e validator.FieldError) string {
	field := fieldKey(e)

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	case "pow2":
		return fmt.Sprintf("%s must be a power of two greater than 1 (got: %v)", field, e.Value())
	case "backend":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, strings.Join(crypto.Backends(), " "), e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", field, e.Tag(), e.Value())
	}
}
