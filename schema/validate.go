package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Reasons a raw argument mapping can be rejected.
var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrInvalidEnumValue = errors.New("invalid enum value")
)

// Reason is the machine-readable cause of a ValidationError.
type Reason string

const (
	ReasonMissing   Reason = "missing"
	ReasonWrongKind Reason = "wrong_kind"
	ReasonNotInEnum Reason = "not_in_enum"
)

// ValidationError describes the first violation found in a raw argument
// mapping. Tool is filled in by callers that know which tool was invoked.
type ValidationError struct {
	Tool     string
	Param    string
	Reason   Reason
	Expected string
	Value    any
}

func (e *ValidationError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonMissing:
		msg = fmt.Sprintf("parameter %q is required", e.Param)
	case ReasonNotInEnum:
		msg = fmt.Sprintf("parameter %q must be one of [%s], got %v", e.Param, e.Expected, e.Value)
	default:
		msg = fmt.Sprintf("parameter %q must be a %s, got %T", e.Param, e.Expected, e.Value)
	}
	if e.Tool != "" {
		return fmt.Sprintf("tool %q: %s", e.Tool, msg)
	}
	return msg
}

// Unwrap maps the reason onto the package sentinel errors.
func (e *ValidationError) Unwrap() error {
	switch e.Reason {
	case ReasonMissing:
		return ErrMissingParameter
	case ReasonNotInEnum:
		return ErrInvalidEnumValue
	default:
		return ErrTypeMismatch
	}
}

// Validate checks raw against d, walking parameters in declaration order and
// stopping at the first violation. Keys that d does not declare are dropped.
// A JSON null is treated as an absent value.
func Validate(d *Descriptor, raw map[string]any) (Args, error) {
	args := Args{values: make(map[string]any, d.Len())}
	if d == nil {
		return args, nil
	}

	for _, p := range d.params {
		value, present := raw[p.Name]
		if !present || value == nil {
			if p.Required {
				return Args{}, &ValidationError{Param: p.Name, Reason: ReasonMissing}
			}
			continue
		}

		normalized, err := d.check(p, value)
		if err != nil {
			return Args{}, err
		}
		args.values[p.Name] = normalized
	}
	return args, nil
}

func (d *Descriptor) check(p Param, value any) (any, error) {
	switch p.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, &ValidationError{Param: p.Name, Reason: ReasonWrongKind, Expected: "string", Value: value}
		}
		return s, nil

	case KindEnum:
		s, ok := value.(string)
		if !ok || !d.allows(p.Name, s) {
			return nil, &ValidationError{Param: p.Name, Reason: ReasonNotInEnum, Expected: strings.Join(p.Enum, ", "), Value: value}
		}
		return s, nil

	case KindNumber:
		n, ok := toNumber(value)
		if !ok {
			return nil, &ValidationError{Param: p.Name, Reason: ReasonWrongKind, Expected: "number", Value: value}
		}
		return n, nil

	case KindBoolean:
		b, ok := toBool(value)
		if !ok {
			return nil, &ValidationError{Param: p.Name, Reason: ReasonWrongKind, Expected: "boolean", Value: value}
		}
		return b, nil
	}
	return nil, &ValidationError{Param: p.Name, Reason: ReasonWrongKind, Expected: string(p.Kind), Value: value}
}

func toNumber(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	// NaN and the infinities have no JSON form.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}
