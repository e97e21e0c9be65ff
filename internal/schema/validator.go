package schema

import (
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nordlys/metawatch/internal/apperr"
)

// Validator checks documents against JSON schemas. In strict mode any
// violation is a hard failure; in lenient mode violations are logged as
// warnings and the caller proceeds. Mode is process-wide configuration.
type Validator struct {
	strict bool
	logger *slog.Logger
}

// NewValidator creates a validator with the given mode.
func NewValidator(strict bool, logger *slog.Logger) *Validator {
	return &Validator{strict: strict, logger: logger}
}

// Strict reports whether the validator aborts writes on violations.
func (v *Validator) Strict() bool { return v.strict }

// Validate checks doc against schema. name is used for logging and error
// context. A nil schema validates trivially.
func (v *Validator) Validate(name string, doc, schema map[string]any) error {
	if schema == nil {
		v.logger.Warn("validator: no schema provided, assuming valid", slog.String("document", name))
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		if v.strict {
			return fmt.Errorf("validate %s: %w", name, err)
		}
		v.logger.Warn("validator: schema could not be evaluated",
			slog.String("document", name),
			slog.String("error", err.Error()))
		return nil
	}
	if result.Valid() {
		return nil
	}

	verr := &apperr.ValidationError{Document: name}
	for _, re := range result.Errors() {
		verr.Violations = append(verr.Violations, apperr.FieldViolation{
			Field:       re.Field(),
			Description: re.Description(),
		})
	}
	if v.strict {
		return verr
	}
	v.logger.Warn("validator: document has violations",
		slog.String("document", name),
		slog.String("detail", verr.Error()))
	return nil
}
