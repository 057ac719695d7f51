// Package registry assembles the ordered set of available plugins: the
// compiled-in stages plus any manifest-declared plugins discovered in the
// user's plugin directory.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/plugins"
)

// Options configures the built-in plugin factories.
type Options struct {
	// ModelDir supplies the whisper model directory at call time so the
	// profanity plugin always sees the current setting.
	ModelDir func() string
}

// DiscoveryError records one manifest the registry could not load.
// Discovery continues past it.
type DiscoveryError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error formats the skipped-manifest report.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("plugin manifest %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *DiscoveryError) Unwrap() error { return e.Err }

// Registry holds plugins in registration order.
type Registry struct {
	plugins       []plugin.Plugin
	byName        map[string]plugin.Plugin
	discoveryErrs []DiscoveryError

	readDir func(string) ([]os.DirEntry, error)
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byName:  map[string]plugin.Plugin{},
		readDir: os.ReadDir,
	}
}

// Builtin returns a registry pre-populated with the shipped plugins, in
// their default pipeline order.
func Builtin(opts Options) *Registry {
	r := New()
	for _, p := range []plugin.Plugin{
		plugins.NewSilence(),
		plugins.NewProfanity(opts.ModelDir),
		plugins.NewBlur(),
		plugins.NewAutoClip(),
	} {
		// Built-in names are unique by construction.
		_ = r.Register(p)
	}
	return r
}

// Register appends a plugin, rejecting duplicate names.
func (r *Registry) Register(p plugin.Plugin) error {
	name := p.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("plugin %q is already registered", name)
	}
	r.byName[name] = p
	r.plugins = append(r.plugins, p)
	return nil
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []plugin.Plugin {
	out := make([]plugin.Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Lookup finds a plugin by display name.
func (r *Registry) Lookup(name string) (plugin.Plugin, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// DiscoveryErrors reports manifests skipped during the last Discover call.
func (r *Registry) DiscoveryErrors() []DiscoveryError {
	out := make([]DiscoveryError, len(r.discoveryErrs))
	copy(out, r.discoveryErrs)
	return out
}

// Discover loads *_plugin.yaml manifests from dir and its immediate
// subdirectories (installed plugin checkouts), sorted by path for a
// deterministic order. Malformed manifests are skipped and recorded; a
// missing directory is not an error.
func (r *Registry) Discover(dir string) error {
	r.discoveryErrs = nil

	paths, err := r.manifestPaths(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading plugin directory %s: %w", dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		manifest, err := LoadManifest(path)
		if err != nil {
			r.discoveryErrs = append(r.discoveryErrs, DiscoveryError{
				Path:    path,
				Message: err.Error(),
				Err:     err,
			})
			continue
		}
		p, err := NewExecPlugin(manifest)
		if err != nil {
			r.discoveryErrs = append(r.discoveryErrs, DiscoveryError{
				Path:    path,
				Message: err.Error(),
				Err:     err,
			})
			continue
		}
		if err := r.Register(p); err != nil {
			r.discoveryErrs = append(r.discoveryErrs, DiscoveryError{
				Path:    path,
				Message: err.Error(),
				Err:     err,
			})
		}
	}
	return nil
}

// manifestPaths lists candidate manifest files one level deep.
func (r *Registry) manifestPaths(dir string) ([]string, error) {
	entries, err := r.readDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if isManifestName(entry.Name()) && !entry.IsDir() {
			paths = append(paths, filepath.Join(dir, entry.Name()))
			continue
		}
		if !entry.IsDir() {
			continue
		}
		sub, err := r.readDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		for _, nested := range sub {
			if isManifestName(nested.Name()) && !nested.IsDir() {
				paths = append(paths, filepath.Join(dir, entry.Name(), nested.Name()))
			}
		}
	}
	return paths, nil
}

func isManifestName(name string) bool {
	return strings.HasSuffix(name, "_plugin.yaml")
}
