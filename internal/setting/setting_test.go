package setting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// testSchemas returns a representative schema covering every kind.
func testSchemas() []Schema {
	minT := 0.0
	maxT := 1.0
	return []Schema{
		{Key: "threshold", Label: "Threshold", Kind: KindFloat, Default: FloatValue(0.04), Min: &minT, Max: &maxT},
		{Key: "max_clips", Label: "Max Clips", Kind: KindInt, Default: IntValue(5)},
		{Key: "enabled_subs", Label: "Embed Subtitles", Kind: KindBool, Default: BoolValue(false)},
		{Key: "language", Label: "Language", Kind: KindString, Default: StringValue("en")},
		{Key: "swears_file", Label: "Word List", Kind: KindFile, Default: FileValue("")},
		{Key: "model", Label: "Model", Kind: KindChoice, Default: ChoiceValue("base"), Choices: []string{"tiny", "base", "small"}},
	}
}

// TestCoerceTypesRawStrings verifies UI strings arrive as typed values.
func TestCoerceTypesRawStrings(t *testing.T) {
	values, err := Coerce(testSchemas(), map[string]string{
		"threshold":    "0.5",
		"max_clips":    "3",
		"enabled_subs": "true",
		"model":        "small",
	})
	require.NoError(t, err)

	f, err := values.Float("threshold")
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	i, err := values.Int("max_clips")
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	b, err := values.Bool("enabled_subs")
	require.NoError(t, err)
	assert.True(t, b)

	m, err := values.String("model")
	require.NoError(t, err)
	assert.Equal(t, "small", m)
}

// TestCoerceAppliesDefaultsForMissingKeys verifies fallback to schema defaults.
func TestCoerceAppliesDefaultsForMissingKeys(t *testing.T) {
	values, err := Coerce(testSchemas(), nil)
	require.NoError(t, err)

	f, err := values.Float("threshold")
	require.NoError(t, err)
	assert.Equal(t, 0.04, f)

	lang, err := values.String("language")
	require.NoError(t, err)
	assert.Equal(t, "en", lang)
}

// TestCoerceRejectsUnknownKeys verifies keys outside the schema fail.
func TestCoerceRejectsUnknownKeys(t *testing.T) {
	_, err := Coerce(testSchemas(), map[string]string{"volume": "11"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting key")
}

// TestCoerceEnforcesBoundsAndChoices verifies constraint checking.
func TestCoerceEnforcesBoundsAndChoices(t *testing.T) {
	_, err := Coerce(testSchemas(), map[string]string{"threshold": "1.5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "above maximum")

	_, err = Coerce(testSchemas(), map[string]string{"model": "huge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not one of")
}

// TestCoerceRejectsMalformedNumbers verifies parse failures are reported.
func TestCoerceRejectsMalformedNumbers(t *testing.T) {
	for raw, key := range map[string]string{
		"abc":  "threshold",
		"1.5x": "max_clips",
		"yep":  "enabled_subs",
	} {
		_, err := Coerce(testSchemas(), map[string]string{key: raw})
		assert.Error(t, err, "raw %q for %s", raw, key)
	}
}

// TestValueKindMismatch verifies typed accessors reject other kinds.
func TestValueKindMismatch(t *testing.T) {
	v := FloatValue(1.5)
	_, err := v.AsInt()
	assert.Error(t, err)
	_, err = v.AsBool()
	assert.Error(t, err)
	_, err = v.AsString()
	assert.Error(t, err)
}

// TestValidateSchemasRejectsDuplicatesAndMismatches checks schema invariants.
func TestValidateSchemasRejectsDuplicatesAndMismatches(t *testing.T) {
	assert.NoError(t, ValidateSchemas(testSchemas()))

	dup := []Schema{
		{Key: "a", Kind: KindInt, Default: IntValue(1)},
		{Key: "a", Kind: KindInt, Default: IntValue(2)},
	}
	assert.Error(t, ValidateSchemas(dup))

	mismatch := []Schema{{Key: "a", Kind: KindInt, Default: FloatValue(1)}}
	assert.Error(t, ValidateSchemas(mismatch))

	badChoice := []Schema{{Key: "a", Kind: KindChoice, Default: ChoiceValue("x"), Choices: []string{"y"}}}
	assert.Error(t, ValidateSchemas(badChoice))
}

// TestCoerceRawRoundTrip verifies Raw(Coerce(x)) preserves arbitrary values.
func TestCoerceRawRoundTrip(t *testing.T) {
	schemas := []Schema{
		{Key: "speed", Kind: KindFloat, Default: FloatValue(1)},
		{Key: "count", Kind: KindInt, Default: IntValue(0)},
		{Key: "flag", Kind: KindBool, Default: BoolValue(false)},
		{Key: "note", Kind: KindString, Default: StringValue("")},
	}

	rapid.Check(t, func(t *rapid.T) {
		values := Values{
			"speed": FloatValue(rapid.Float64Range(-1e6, 1e6).Draw(t, "speed")),
			"count": IntValue(rapid.IntRange(-1e9, 1e9).Draw(t, "count")),
			"flag":  BoolValue(rapid.Bool().Draw(t, "flag")),
			"note":  StringValue(rapid.StringMatching(`[a-zA-Z0-9 ._-]*`).Draw(t, "note")),
		}

		raw := Raw(schemas, values)
		back, err := Coerce(schemas, raw)
		if err != nil {
			t.Fatalf("coerce round trip: %v", err)
		}
		for key, want := range values {
			if back[key] != want {
				t.Fatalf("key %s: got %#v, want %#v", key, back[key], want)
			}
		}
	})
}
