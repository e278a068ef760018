// internal/schema/validate.go
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Error codes carried on FieldError.
const (
	CodeMissingRequired = "MISSING_REQUIRED"
	CodeTypeMismatch    = "TYPE_MISMATCH"
	CodeInvalidEnum     = "INVALID_ENUM"
	CodeBelowMinimum    = "BELOW_MINIMUM"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeTooShort        = "TOO_SHORT"
)

// FieldError is one validation violation, surfaced verbatim to the caller.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks raw against the schema and returns the coerced details
// alongside every violation found, in declared field order. Extra keys not
// named by the schema pass through untouched and unvalidated. A nil error
// slice means the payload is valid.
func (s *Schema) Validate(raw map[string]interface{}) (map[string]interface{}, []FieldError) {
	validated := make(map[string]interface{}, len(raw))
	var errs []FieldError

	for _, f := range s.Fields {
		value, present := raw[f.Name]
		if !present || isEmpty(value) {
			if f.Required {
				errs = append(errs, FieldError{
					Field:   f.Name,
					Code:    CodeMissingRequired,
					Message: fmt.Sprintf("%s is required", f.Label),
				})
			}
			continue
		}

		coerced, ferr := coerceField(f, value)
		if ferr != nil {
			errs = append(errs, *ferr)
			continue
		}
		validated[f.Name] = coerced
	}

	// Additive future-proofing: unknown keys are preserved, never validated.
	for k, v := range raw {
		if !s.Knows(k) {
			validated[k] = v
		}
	}

	return validated, errs
}

func coerceField(f FieldSpec, value interface{}) (interface{}, *FieldError) {
	switch f.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return nil, typeMismatch(f, "a text value")
		}
		str = strings.TrimSpace(str)
		if f.MinLen > 0 && len(str) < f.MinLen {
			return nil, &FieldError{
				Field:   f.Name,
				Code:    CodeTooShort,
				Message: fmt.Sprintf("%s must be at least %d characters", f.Label, f.MinLen),
			}
		}
		if f.Pattern != nil && !f.Pattern.MatchString(str) {
			return nil, &FieldError{
				Field:   f.Name,
				Code:    CodeInvalidFormat,
				Message: fmt.Sprintf("%s has an invalid format", f.Label),
			}
		}
		return str, nil

	case TypeDecimal:
		num, ok := toFloat(value)
		if !ok {
			return nil, typeMismatch(f, "a number")
		}
		if num <= 0 {
			return nil, &FieldError{
				Field:   f.Name,
				Code:    CodeBelowMinimum,
				Message: fmt.Sprintf("%s must be a positive number", f.Label),
			}
		}
		if f.Min > 0 && num < f.Min {
			return nil, &FieldError{
				Field:   f.Name,
				Code:    CodeBelowMinimum,
				Message: fmt.Sprintf("%s must be at least %d", f.Label, int64(f.Min)),
			}
		}
		return num, nil

	case TypeInteger:
		num, ok := toFloat(value)
		if !ok || num != math.Trunc(num) {
			return nil, typeMismatch(f, "a whole number")
		}
		n := int64(num)
		min := int64(math.Max(f.Min, 1))
		if n < min {
			return nil, &FieldError{
				Field:   f.Name,
				Code:    CodeBelowMinimum,
				Message: fmt.Sprintf("%s must be at least %d", f.Label, min),
			}
		}
		return n, nil

	case TypeEnum:
		str, ok := value.(string)
		if !ok {
			return nil, typeMismatch(f, "a text value")
		}
		str = strings.TrimSpace(str)
		for _, allowed := range f.Enum {
			if str == allowed {
				return str, nil
			}
		}
		return nil, &FieldError{
			Field:   f.Name,
			Code:    CodeInvalidEnum,
			Message: fmt.Sprintf("%s must be one of: %s", f.Label, strings.Join(f.Enum, ", ")),
		}
	}

	return value, nil
}

func typeMismatch(f FieldSpec, want string) *FieldError {
	return &FieldError{
		Field:   f.Name,
		Code:    CodeTypeMismatch,
		Message: fmt.Sprintf("%s must be %s", f.Label, want),
	}
}

// toFloat accepts JSON numbers, Go ints, and decimal-or-integer strings.
// A non-numeric string is a coercion failure, never a crash.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return num, true
	}
	return 0, false
}

func isEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
