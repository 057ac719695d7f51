package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"video-pipeline/internal/setting"
)

// Manifest is the declarative form of an external plugin: metadata, a
// settings schema, a dependency check and an argv template, all executed
// out of process.
type Manifest struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Icon        string            `yaml:"icon"`
	Settings    []ManifestSetting `yaml:"settings"`
	Check       ManifestCommand   `yaml:"check"`
	Run         ManifestCommand   `yaml:"run"`
}

// ManifestSetting is one schema entry with the default still in string form.
type ManifestSetting struct {
	Key     string   `yaml:"key"`
	Label   string   `yaml:"label"`
	Kind    string   `yaml:"kind"`
	Default string   `yaml:"default"`
	Help    string   `yaml:"help"`
	Choices []string `yaml:"choices"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
}

// ManifestCommand is an executable plus argv, possibly with placeholders.
type ManifestCommand struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// LoadManifest reads and validates one *_plugin.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	decoder := yaml.NewDecoder(strings.NewReader(string(raw)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the fields the exec plugin contract requires.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest has no name")
	}
	if strings.TrimSpace(m.Run.Command) == "" {
		return fmt.Errorf("manifest %q has no run command", m.Name)
	}
	hasOutput := false
	for _, arg := range m.Run.Args {
		if strings.Contains(arg, "{output}") {
			hasOutput = true
		}
	}
	if !hasOutput {
		return fmt.Errorf("manifest %q run args never reference {output}", m.Name)
	}
	if _, err := m.Schemas(); err != nil {
		return err
	}
	return nil
}

// Schemas converts the manifest settings into typed schema entries.
func (m *Manifest) Schemas() ([]setting.Schema, error) {
	schemas := make([]setting.Schema, 0, len(m.Settings))
	for _, s := range m.Settings {
		kind, err := parseKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", s.Key, err)
		}
		def, err := parseDefault(kind, s.Default)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", s.Key, err)
		}
		schemas = append(schemas, setting.Schema{
			Key:     s.Key,
			Label:   s.Label,
			Kind:    kind,
			Default: def,
			Help:    s.Help,
			Choices: append([]string(nil), s.Choices...),
			Min:     s.Min,
			Max:     s.Max,
		})
	}
	if err := setting.ValidateSchemas(schemas); err != nil {
		return nil, err
	}
	return schemas, nil
}

func parseKind(kind string) (setting.Kind, error) {
	switch setting.Kind(kind) {
	case setting.KindFloat, setting.KindInt, setting.KindBool,
		setting.KindString, setting.KindFile, setting.KindChoice:
		return setting.Kind(kind), nil
	default:
		return "", fmt.Errorf("unknown setting kind %q", kind)
	}
}

func parseDefault(kind setting.Kind, raw string) (setting.Value, error) {
	switch kind {
	case setting.KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return setting.Value{}, fmt.Errorf("invalid float default %q", raw)
		}
		return setting.FloatValue(v), nil
	case setting.KindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return setting.Value{}, fmt.Errorf("invalid int default %q", raw)
		}
		return setting.IntValue(v), nil
	case setting.KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return setting.Value{}, fmt.Errorf("invalid bool default %q", raw)
		}
		return setting.BoolValue(v), nil
	case setting.KindFile:
		return setting.FileValue(raw), nil
	case setting.KindChoice:
		return setting.ChoiceValue(raw), nil
	default:
		return setting.StringValue(raw), nil
	}
}
