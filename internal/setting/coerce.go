package setting

import (
	"fmt"
	"strconv"
	"strings"
)

// Coerce converts raw string values from the UI or the settings store into
// schema-typed values. Unknown keys are rejected, missing keys fall back to
// the schema defaults, and bounds/choice constraints are enforced here so
// plugins never see an out-of-contract value.
func Coerce(schemas []Schema, raw map[string]string) (Values, error) {
	byKey := make(map[string]Schema, len(schemas))
	values := make(Values, len(schemas))
	for _, s := range schemas {
		byKey[s.Key] = s
		values[s.Key] = s.Default
	}

	for key, text := range raw {
		schema, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("unknown setting key: %s", key)
		}

		value, err := coerceOne(schema, text)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", key, err)
		}
		values[key] = value
	}

	return values, nil
}

// Raw converts typed values back into the string form the store persists.
// A Coerce/Raw round trip preserves every value.
func Raw(schemas []Schema, values Values) map[string]string {
	raw := make(map[string]string, len(values))
	for _, s := range schemas {
		v, ok := values[s.Key]
		if !ok {
			continue
		}
		raw[s.Key] = formatValue(v)
	}
	return raw
}

// coerceOne parses one raw string according to the schema kind.
func coerceOne(schema Schema, text string) (Value, error) {
	switch schema.Kind {
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as float", text)
		}
		if err := checkBounds(schema, f); err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil

	case KindInt:
		i, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as int", text)
		}
		if err := checkBounds(schema, float64(i)); err != nil {
			return Value{}, err
		}
		return IntValue(i), nil

	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as bool", text)
		}
		return BoolValue(b), nil

	case KindString:
		return StringValue(text), nil

	case KindFile:
		return FileValue(strings.TrimSpace(text)), nil

	case KindChoice:
		option := strings.TrimSpace(text)
		if !containsChoice(schema.Choices, option) {
			return Value{}, fmt.Errorf("%q is not one of: %s", option, strings.Join(schema.Choices, ", "))
		}
		return ChoiceValue(option), nil

	default:
		return Value{}, fmt.Errorf("unknown setting kind: %s", schema.Kind)
	}
}

// checkBounds enforces optional min/max limits on numeric settings.
func checkBounds(schema Schema, v float64) error {
	if schema.Min != nil && v < *schema.Min {
		return fmt.Errorf("value %v is below minimum %v", v, *schema.Min)
	}
	if schema.Max != nil && v > *schema.Max {
		return fmt.Errorf("value %v is above maximum %v", v, *schema.Max)
	}
	return nil
}

// formatValue renders a typed value as its canonical raw string.
func formatValue(v Value) string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case KindInt:
		return strconv.Itoa(v.integer)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	default:
		return v.text
	}
}
