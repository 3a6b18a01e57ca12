package plotforge

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"

	"github.com/golobby/cast"
)

// ParamType names the value types a schema parameter can declare.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumeric ParamType = "numeric"
	TypeBool    ParamType = "bool"
	TypeList    ParamType = "list"
	TypeMap     ParamType = "map"
)

// Constraints restricts the values a parameter accepts. All fields are
// optional; nil/zero means unconstrained.
type Constraints struct {
	// Min and Max compare against the whole value. For vector-valued inputs
	// the comparison uses the minimum and maximum of the collection, not
	// each element.
	Min *float64
	Max *float64

	// Pattern requires every element to match the regular expression.
	Pattern string

	// AllowedValues requires every element to be a member of the set.
	AllowedValues []any

	// Length requires an exact collection (or string) size.
	Length *int

	// NonEmpty requires a collection (or string) size greater than zero.
	NonEmpty bool
}

// ParamSpec declares one schema parameter.
type ParamSpec struct {
	Type        ParamType
	Required    bool
	Default     any
	Constraints *Constraints
}

// Schema maps parameter names to their declarations.
type Schema map[string]ParamSpec

// ValidationReport is the structured outcome of ValidateConfig. Validation
// failures are reported here, never raised as Go errors; the error return
// of ValidateConfig covers misuse only (nil schema, bad pattern).
type ValidationReport struct {
	Valid         bool           `json:"valid"`
	Errors        []string       `json:"errors,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	MissingParams []string       `json:"missingParams,omitempty"`
	ExtraParams   []string       `json:"extraParams,omitempty"`
	Normalized    map[string]any `json:"normalizedConfig"`
}

// ValidateConfig validates a caller-supplied parameter map against a
// declared schema. Required-but-absent parameters produce errors; absent
// optional parameters are filled from declared defaults; unknown keys
// produce warnings, or errors when strict is true. For each known key the
// value is type-checked first, and the first type mismatch short-circuits
// constraint checking for that parameter.
func ValidateConfig(config map[string]any, schema Schema, strict bool) (*ValidationReport, error) {
	if schema == nil {
		return nil, ErrSchemaNil
	}
	if config == nil {
		config = map[string]any{}
	}

	report := &ValidationReport{Normalized: make(map[string]any)}

	declared := make([]string, 0, len(schema))
	for name := range schema {
		declared = append(declared, name)
	}
	sort.Strings(declared)

	for _, name := range declared {
		spec := schema[name]
		if _, present := config[name]; present {
			continue
		}
		if spec.Required {
			report.Errors = append(report.Errors,
				fmt.Sprintf("required parameter %q is missing", name))
			report.MissingParams = append(report.MissingParams, name)
			continue
		}
		if spec.Default != nil {
			report.Normalized[name] = spec.Default
		}
	}

	provided := make([]string, 0, len(config))
	for name := range config {
		provided = append(provided, name)
	}
	sort.Strings(provided)

	for _, name := range provided {
		value := config[name]
		spec, known := schema[name]
		if !known {
			report.ExtraParams = append(report.ExtraParams, name)
			msg := fmt.Sprintf("unknown parameter %q", name)
			if strict {
				report.Errors = append(report.Errors, msg)
			} else {
				report.Warnings = append(report.Warnings, msg)
			}
			continue
		}

		normalized, ok := checkType(name, value, spec.Type, report)
		if !ok {
			continue
		}
		report.Normalized[name] = normalized

		if spec.Constraints != nil {
			if err := checkConstraints(name, normalized, spec.Constraints, report); err != nil {
				return nil, err
			}
		}
	}

	report.Valid = len(report.Errors) == 0
	return report, nil
}

// checkType verifies value against the declared type and returns the
// normalized value. String inputs for numeric and bool parameters are
// coerced; a failed coercion is a type mismatch.
func checkType(name string, value any, t ParamType, report *ValidationReport) (any, bool) {
	mismatch := func() (any, bool) {
		report.Errors = append(report.Errors,
			fmt.Sprintf("parameter %q: expected %s, got %T", name, t, value))
		return nil, false
	}

	switch t {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, true
		}
		return mismatch()
	case TypeNumeric:
		if _, ok := toFloat(value); ok {
			return value, true
		}
		if _, ok := toFloatSlice(value); ok {
			return value, true
		}
		if s, ok := value.(string); ok {
			if converted, err := cast.FromType(s, reflect.TypeOf(float64(0))); err == nil {
				return converted, true
			}
		}
		return mismatch()
	case TypeBool:
		if b, ok := value.(bool); ok {
			return b, true
		}
		if s, ok := value.(string); ok {
			if converted, err := cast.FromType(s, reflect.TypeOf(true)); err == nil {
				return converted, true
			}
		}
		return mismatch()
	case TypeList:
		if reflect.ValueOf(value).Kind() == reflect.Slice {
			return value, true
		}
		return mismatch()
	case TypeMap:
		if reflect.ValueOf(value).Kind() == reflect.Map {
			return value, true
		}
		return mismatch()
	default:
		report.Errors = append(report.Errors,
			fmt.Sprintf("parameter %q: schema declares unknown type %q", name, t))
		return nil, false
	}
}

// checkConstraints applies every declared constraint to a type-checked
// value, appending one error per violation. The returned error covers
// schema misuse (an uncompilable pattern) only.
func checkConstraints(name string, value any, c *Constraints, report *ValidationReport) error {
	if c.Min != nil || c.Max != nil {
		if lo, hi, ok := valueBounds(value); ok {
			if c.Min != nil && lo < *c.Min {
				report.Errors = append(report.Errors,
					fmt.Sprintf("parameter %q: value %v is below minimum %v", name, lo, *c.Min))
			}
			if c.Max != nil && hi > *c.Max {
				report.Errors = append(report.Errors,
					fmt.Sprintf("parameter %q: value %v is above maximum %v", name, hi, *c.Max))
			}
		}
	}

	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("%w: parameter %q: %v", ErrInvalidPattern, name, err)
		}
		for _, elem := range elementsOf(value) {
			if !re.MatchString(fmt.Sprintf("%v", elem)) {
				report.Errors = append(report.Errors,
					fmt.Sprintf("parameter %q: value %v does not match pattern %q", name, elem, c.Pattern))
			}
		}
	}

	if len(c.AllowedValues) > 0 {
		for _, elem := range elementsOf(value) {
			if !containsValue(c.AllowedValues, elem) {
				report.Errors = append(report.Errors,
					fmt.Sprintf("parameter %q: value %v is not in allowed values %v", name, elem, c.AllowedValues))
			}
		}
	}

	if c.Length != nil {
		if size, ok := sizeOf(value); ok && size != *c.Length {
			report.Errors = append(report.Errors,
				fmt.Sprintf("parameter %q: length %d does not equal required length %d", name, size, *c.Length))
		}
	}

	if c.NonEmpty {
		if size, ok := sizeOf(value); ok && size == 0 {
			report.Errors = append(report.Errors,
				fmt.Sprintf("parameter %q: value must be non-empty", name))
		}
	}

	return nil
}

// valueBounds returns the low and high comparison points for min/max
// checks: the value itself for scalars, the collection minimum and maximum
// for vectors.
func valueBounds(value any) (lo, hi float64, ok bool) {
	if f, scalar := toFloat(value); scalar {
		return f, f, true
	}
	fs, vector := toFloatSlice(value)
	if !vector || len(fs) == 0 {
		return 0, 0, false
	}
	lo, hi = fs[0], fs[0]
	for _, f := range fs[1:] {
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	return lo, hi, true
}

// elementsOf views a value as its elements: a slice yields each element, a
// scalar yields itself.
func elementsOf(value any) []any {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice {
		return []any{value}
	}
	elems := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		elems = append(elems, v.Index(i).Interface())
	}
	return elems
}

// sizeOf returns the size used by length and non-empty checks: string
// length, or slice/map length. Scalars report no size.
func sizeOf(value any) (int, bool) {
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.String, reflect.Slice, reflect.Map:
		return v.Len(), true
	default:
		return 0, false
	}
}

func containsValue(set []any, elem any) bool {
	for _, allowed := range set {
		if fmt.Sprintf("%v", allowed) == fmt.Sprintf("%v", elem) {
			return true
		}
	}
	return false
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toFloatSlice(value any) ([]float64, bool) {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice {
		return nil, false
	}
	fs := make([]float64, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		f, ok := toFloat(v.Index(i).Interface())
		if !ok {
			return nil, false
		}
		fs = append(fs, f)
	}
	return fs, true
}
