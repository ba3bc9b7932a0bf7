package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"
)

// ValidationMode selects how missing attributes are treated.
type ValidationMode int

const (
	// ValidateCreate enforces required attributes.
	ValidateCreate ValidationMode = iota
	// ValidatePatch only checks the attributes present in the input.
	ValidatePatch
)

// Validator checks scalar attribute values of document data against a model.
// Relation and component attributes are skipped; their shapes are owned by the
// document service.
type Validator struct{}

// NewValidator creates a new data validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks data against m. Decimal values are normalized in place to their
// canonical string form.
func (v *Validator) Validate(m *Model, data map[string]interface{}, mode ValidationMode) error {
	var errs []*ValidationError

	for key := range data {
		if isReserved(key) {
			continue
		}
		if _, ok := m.Attribute(key); !ok {
			errs = append(errs, &ValidationError{Model: m.UID, Field: key, Message: "unknown field"})
		}
	}

	for _, a := range m.Attributes {
		value, exists := data[a.Name]

		if !exists {
			if a.Required && mode == ValidateCreate {
				errs = append(errs, NewRequiredFieldError(m.UID, a.Name))
			}
			continue
		}
		if a.Kind != AttributeScalar {
			continue
		}
		if value == nil {
			if a.Required {
				errs = append(errs, &ValidationError{Model: m.UID, Field: a.Name, Message: "required field cannot be null"})
			}
			continue
		}

		normalized, err := v.validateScalar(m.UID, a, value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		data[a.Name] = normalized
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

func (v *Validator) validateScalar(model string, a *Attribute, value interface{}) (interface{}, *ValidationError) {
	spec := a.Scalar
	fail := func(format string, args ...interface{}) *ValidationError {
		return &ValidationError{Model: model, Field: a.Name, Message: fmt.Sprintf(format, args...)}
	}

	switch spec.Type {
	case TypeString, TypeText, TypeRichText, TypeEmail, TypeEnumeration:
		str, ok := value.(string)
		if !ok {
			return nil, NewTypeMismatchError(model, a.Name, "string", jsonTypeName(value))
		}
		if spec.Type == TypeEmail {
			if _, err := mail.ParseAddress(str); err != nil {
				return nil, fail("invalid email address %q", str)
			}
		}
		if spec.Type == TypeEnumeration && !contains(spec.Enum, str) {
			return nil, fail("value %q not in enum %v", str, spec.Enum)
		}
		if spec.MinLength != nil && len(str) < *spec.MinLength {
			return nil, fail("string length %d is less than minimum %d", len(str), *spec.MinLength)
		}
		if spec.MaxLength != nil && len(str) > *spec.MaxLength {
			return nil, fail("string length %d exceeds maximum %d", len(str), *spec.MaxLength)
		}
		if spec.compiledPattern != nil && !spec.compiledPattern.MatchString(str) {
			return nil, fail("string does not match pattern %q", spec.Pattern)
		}
		return str, nil

	case TypeInteger, TypeFloat:
		num, ok := toFloat(value)
		if !ok {
			return nil, NewTypeMismatchError(model, a.Name, "number", jsonTypeName(value))
		}
		if spec.Type == TypeInteger {
			if num != math.Trunc(num) {
				return nil, fail("expected integer, got float with fractional part")
			}
			if num < math.MinInt32 || num > math.MaxInt32 {
				return nil, fail("value %v out of range for integer", num)
			}
		}
		if spec.Min != nil && num < *spec.Min {
			return nil, fail("value %v is less than minimum %v", num, *spec.Min)
		}
		if spec.Max != nil && num > *spec.Max {
			return nil, fail("value %v exceeds maximum %v", num, *spec.Max)
		}
		return value, nil

	case TypeBigInteger, TypeDecimal:
		d, err := toDecimal(value)
		if err != nil {
			return nil, NewTypeMismatchError(model, a.Name, string(spec.Type), jsonTypeName(value))
		}
		if spec.Type == TypeBigInteger && !d.IsInteger() {
			return nil, fail("expected integer, got %s", d.String())
		}
		if spec.Min != nil && d.LessThan(decimal.NewFromFloat(*spec.Min)) {
			return nil, fail("value %s is less than minimum %v", d.String(), *spec.Min)
		}
		if spec.Max != nil && d.GreaterThan(decimal.NewFromFloat(*spec.Max)) {
			return nil, fail("value %s exceeds maximum %v", d.String(), *spec.Max)
		}
		return d.String(), nil

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return nil, NewTypeMismatchError(model, a.Name, "boolean", jsonTypeName(value))
		}
		return value, nil

	case TypeDate, TypeDateTime:
		str, ok := value.(string)
		if !ok {
			return nil, NewTypeMismatchError(model, a.Name, string(spec.Type), jsonTypeName(value))
		}
		layout := time.RFC3339
		if spec.Type == TypeDate {
			layout = time.DateOnly
		}
		if _, err := time.Parse(layout, str); err != nil {
			return nil, fail("invalid %s %q", spec.Type, str)
		}
		return str, nil

	case TypeJSON:
		return value, nil
	}

	return nil, fail("unknown field type: %s", spec.Type)
}

func toFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toDecimal(value interface{}) (decimal.Decimal, error) {
	switch n := value.(type) {
	case string:
		return decimal.NewFromString(n)
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	}
	return decimal.Decimal{}, fmt.Errorf("not a number: %T", value)
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// jsonTypeName returns a human-readable type name for JSON values.
func jsonTypeName(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case bool:
		return "bool"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
