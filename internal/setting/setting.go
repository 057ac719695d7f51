// Package setting defines the typed settings model shared by plugins,
// the pipeline runner, and the UI schema editors.
package setting

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the runtime type of a configurable setting.
type Kind string

const (
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	KindString Kind = "string"
	KindFile   Kind = "file"
	KindChoice Kind = "choice"
)

// Schema describes one configurable parameter a plugin exposes.
type Schema struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Kind    Kind     `json:"kind"`
	Default Value    `json:"default"`
	Help    string   `json:"help,omitempty"`
	Choices []string `json:"choices,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

// Value is a tagged union holding one typed setting value.
type Value struct {
	kind    Kind
	number  float64
	integer int
	boolean bool
	text    string
}

// FloatValue wraps a float64 in a Value.
func FloatValue(v float64) Value {
	return Value{kind: KindFloat, number: v}
}

// IntValue wraps an int in a Value.
func IntValue(v int) Value {
	return Value{kind: KindInt, integer: v}
}

// BoolValue wraps a bool in a Value.
func BoolValue(v bool) Value {
	return Value{kind: KindBool, boolean: v}
}

// StringValue wraps a string in a Value.
func StringValue(v string) Value {
	return Value{kind: KindString, text: v}
}

// FileValue wraps a file path in a Value.
func FileValue(v string) Value {
	return Value{kind: KindFile, text: v}
}

// ChoiceValue wraps a choice selection in a Value.
func ChoiceValue(v string) Value {
	return Value{kind: KindChoice, text: v}
}

// Kind returns the tag of the stored value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero reports whether the value carries no tag.
func (v Value) IsZero() bool {
	return v.kind == ""
}

// AsFloat returns the float payload or a kind-mismatch error.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, fmt.Errorf("setting value is %s, not float", v.kind)
	}
	return v.number, nil
}

// AsInt returns the int payload or a kind-mismatch error.
func (v Value) AsInt() (int, error) {
	if v.kind != KindInt {
		return 0, fmt.Errorf("setting value is %s, not int", v.kind)
	}
	return v.integer, nil
}

// AsBool returns the bool payload or a kind-mismatch error.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("setting value is %s, not bool", v.kind)
	}
	return v.boolean, nil
}

// AsString returns the text payload for string, file, and choice kinds.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString, KindFile, KindChoice:
		return v.text, nil
	default:
		return "", fmt.Errorf("setting value is %s, not text", v.kind)
	}
}

// MarshalJSON emits the native payload so UI consumers see plain values.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFloat:
		return json.Marshal(v.number)
	case KindInt:
		return json.Marshal(v.integer)
	case KindBool:
		return json.Marshal(v.boolean)
	case KindString, KindFile, KindChoice:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// Values maps schema keys to coerced typed values for one plugin.
type Values map[string]Value

// Float returns the typed float for key.
func (vals Values) Float(key string) (float64, error) {
	v, ok := vals[key]
	if !ok {
		return 0, fmt.Errorf("setting %q is not present", key)
	}
	return v.AsFloat()
}

// Int returns the typed int for key.
func (vals Values) Int(key string) (int, error) {
	v, ok := vals[key]
	if !ok {
		return 0, fmt.Errorf("setting %q is not present", key)
	}
	return v.AsInt()
}

// Bool returns the typed bool for key.
func (vals Values) Bool(key string) (bool, error) {
	v, ok := vals[key]
	if !ok {
		return false, fmt.Errorf("setting %q is not present", key)
	}
	return v.AsBool()
}

// String returns the typed text for key.
func (vals Values) String(key string) (string, error) {
	v, ok := vals[key]
	if !ok {
		return "", fmt.Errorf("setting %q is not present", key)
	}
	return v.AsString()
}

// ValidateSchemas checks key uniqueness and default/kind consistency.
func ValidateSchemas(schemas []Schema) error {
	seen := make(map[string]struct{}, len(schemas))
	for _, s := range schemas {
		if s.Key == "" {
			return fmt.Errorf("setting schema has an empty key")
		}
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("duplicate setting key: %s", s.Key)
		}
		seen[s.Key] = struct{}{}

		switch s.Kind {
		case KindFloat, KindInt, KindBool, KindString, KindFile, KindChoice:
		default:
			return fmt.Errorf("setting %s has unknown kind: %s", s.Key, s.Kind)
		}

		if s.Default.kind != s.Kind {
			return fmt.Errorf("setting %s default is %s, want %s", s.Key, s.Default.kind, s.Kind)
		}
		if s.Kind == KindChoice {
			if len(s.Choices) == 0 {
				return fmt.Errorf("choice setting %s has no choices", s.Key)
			}
			if !containsChoice(s.Choices, s.Default.text) {
				return fmt.Errorf("choice setting %s default %q is not a declared choice", s.Key, s.Default.text)
			}
		}
	}
	return nil
}

// containsChoice reports membership of option in choices.
func containsChoice(choices []string, option string) bool {
	for _, c := range choices {
		if c == option {
			return true
		}
	}
	return false
}
