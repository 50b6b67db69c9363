package bridge

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parameter is a named solver setting. Value holds an int, float64, bool or string.
type Parameter struct {
	Description string
	Value       any
}

// Parameters is the named parameter store of a solver.
type Parameters struct {
	m map[string]*Parameter
}

// NewParameters returns an empty store.
func NewParameters() *Parameters {
	return &Parameters{m: make(map[string]*Parameter)}
}

// Define adds or replaces a parameter.
func (p *Parameters) Define(key, description string, value any) {
	if err := checkKind(value); err != nil {
		panic(err)
	}
	p.m[key] = &Parameter{Description: description, Value: value}
}

func checkKind(v any) error {
	switch v.(type) {
	case int, float64, bool, string:
		return nil
	}
	return fmt.Errorf("unsupported parameter type %T", v)
}

// Set changes the value of key. An int is accepted for a float64 parameter;
// other type changes are rejected. Unknown keys are defined without description.
func (p *Parameters) Set(key string, value any) error {
	if err := checkKind(value); err != nil {
		return fmt.Errorf("parameter %q: %w", key, err)
	}
	old, ok := p.m[key]
	if !ok {
		p.m[key] = &Parameter{Value: value}
		return nil
	}
	switch old.Value.(type) {
	case float64:
		switch v := value.(type) {
		case int:
			value = float64(v)
		case float64:
		default:
			return fmt.Errorf("parameter %q wants float64, got %T", key, value)
		}
	default:
		if fmt.Sprintf("%T", old.Value) != fmt.Sprintf("%T", value) {
			return fmt.Errorf("parameter %q wants %T, got %T", key, old.Value, value)
		}
	}
	old.Value = value
	return nil
}

// Get returns the parameter named key.
func (p *Parameters) Get(key string) (Parameter, bool) {
	v, ok := p.m[key]
	if !ok {
		return Parameter{}, false
	}
	return *v, true
}

// Keys returns the parameter names in lexical order.
func (p *Parameters) Keys() []string {
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Value returns the parameter key as a T.
func Value[T int | float64 | bool | string](p *Parameters, key string) (T, error) {
	var zero T
	v, ok := p.m[key]
	if !ok {
		return zero, fmt.Errorf("parameter %q is not defined", key)
	}
	t, ok := v.Value.(T)
	if !ok {
		return zero, fmt.Errorf("parameter %q is %T, not %T", key, v.Value, zero)
	}
	return t, nil
}

// LoadYAML merges a flat YAML mapping of parameter values.
func (p *Parameters) LoadYAML(r io.Reader) error {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode parameters: %w", err)
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := p.Set(k, doc[k]); err != nil {
			return err
		}
	}
	return nil
}

// forwarded maps the store onto "Key = Value" option strings of the sparse solver.
//
// max-iterations and the two nag tolerances map to the major iteration options, a
// tolerance of 0 leaves the library default. Any other nag.<words> parameter is
// forwarded as "<Words> = <value>".
func (p *Parameters) forwarded() []string {
	var opts []string
	for _, k := range p.Keys() {
		v := p.m[k].Value
		switch k {
		case "max-iterations":
			opts = append(opts, fmt.Sprintf("Major Iterations Limit = %v", v))
		case "nag.optimality-tolerance", "nag.feasibility-tolerance":
			if f, ok := v.(float64); ok && f == 0 {
				continue
			}
			name := "Major Optimality Tolerance"
			if k == "nag.feasibility-tolerance" {
				name = "Major Feasibility Tolerance"
			}
			opts = append(opts, fmt.Sprintf("%s = %v", name, v))
		default:
			words, ok := strings.CutPrefix(k, "nag.")
			if !ok || words == "" {
				continue
			}
			opts = append(opts, fmt.Sprintf("%s = %v", optionName(words), optionValue(v)))
		}
	}
	return opts
}

func optionName(words string) string {
	parts := strings.Split(words, "-")
	for i, w := range parts {
		if w != "" {
			parts[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(parts, " ")
}

func optionValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return "Yes"
		}
		return "No"
	}
	return v
}
