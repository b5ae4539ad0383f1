// Package params builds validated parameter sets for LLM requests.
//
// Build merges caller overrides with a model's registry defaults. The
// overrides are validated in full before any default is touched, so an
// invalid value is never observable in a result, not even transiently.
// The returned map is always fully populated: every parameter the model
// declares carries either the caller's override or the registry default.
package params

import (
	"fmt"

	"github.com/xostack/unillm/registry"
)

// APIKeyName is the reserved override name. It is recognized everywhere a
// parameter is accepted but routes to credential resolution; no model
// declares it as a rule.
const APIKeyName = "api_key"

// UnknownParameterError reports an override whose name is not a declared
// parameter of the target model.
type UnknownParameterError struct {
	Provider string
	ModelID  string
	Name     string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("parameter %q is not recognized by %s/%s", e.Name, e.Provider, e.ModelID)
}

// TypeMismatchError reports an override whose value type does not match
// the parameter's declared type.
type TypeMismatchError struct {
	Name     string
	Expected string
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parameter %q expects a %s value, got %v (%T)", e.Name, e.Expected, e.Value, e.Value)
}

// OutOfRangeError reports an override outside the parameter's declared
// inclusive bounds.
type OutOfRangeError struct {
	Name  string
	Value any
	Min   *float64
	Max   *float64
}

func (e *OutOfRangeError) Error() string {
	switch {
	case e.Min != nil && e.Max != nil:
		return fmt.Sprintf("parameter %q value %v is outside [%v, %v]", e.Name, e.Value, *e.Min, *e.Max)
	case e.Min != nil:
		return fmt.Sprintf("parameter %q value %v is below minimum %v", e.Name, e.Value, *e.Min)
	default:
		return fmt.Sprintf("parameter %q value %v is above maximum %v", e.Name, e.Value, *e.Max)
	}
}

// Build validates overrides against the model's parameter rules and merges
// them over the registry defaults. Validation runs before the merge; on any
// failure the error is returned and no partial result exists.
func Build(spec registry.ModelSpec, overrides map[string]any) (map[string]any, error) {
	checked := make(map[string]any, len(overrides))
	for name, value := range overrides {
		rule, ok := spec.ParamRules[name]
		if !ok {
			return nil, &UnknownParameterError{
				Provider: spec.Provider,
				ModelID:  spec.ModelID,
				Name:     name,
			}
		}

		normalized, err := checkValue(name, rule, value)
		if err != nil {
			return nil, err
		}
		checked[name] = normalized
	}

	result := spec.Defaults()
	for name, value := range checked {
		result[name] = value
	}
	return result, nil
}

// checkValue verifies one override against its rule and returns the value
// in the rule's canonical Go type. Integers are accepted for float
// parameters; the reverse is not, since it would silently truncate.
func checkValue(name string, rule registry.ParamRule, value any) (any, error) {
	switch rule.Type {
	case registry.TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, &TypeMismatchError{Name: name, Expected: "string", Value: value}
		}
		return s, nil

	case registry.TypeFloat:
		var f float64
		switch v := value.(type) {
		case float64:
			f = v
		case float32:
			f = float64(v)
		case int:
			f = float64(v)
		default:
			return nil, &TypeMismatchError{Name: name, Expected: "float", Value: value}
		}
		if err := checkBounds(name, rule, f, f); err != nil {
			return nil, err
		}
		return f, nil

	case registry.TypeInt:
		var n int
		switch v := value.(type) {
		case int:
			n = v
		case int64:
			n = int(v)
		default:
			return nil, &TypeMismatchError{Name: name, Expected: "int", Value: value}
		}
		if err := checkBounds(name, rule, float64(n), n); err != nil {
			return nil, err
		}
		return n, nil

	default:
		return nil, fmt.Errorf("parameter %q has unknown rule type %q", name, rule.Type)
	}
}

// checkBounds enforces the rule's inclusive [min, max] interval. Boundary
// values pass.
func checkBounds(name string, rule registry.ParamRule, numeric float64, original any) error {
	if rule.Min != nil && numeric < *rule.Min {
		return &OutOfRangeError{Name: name, Value: original, Min: rule.Min, Max: rule.Max}
	}
	if rule.Max != nil && numeric > *rule.Max {
		return &OutOfRangeError{Name: name, Value: original, Min: rule.Min, Max: rule.Max}
	}
	return nil
}
