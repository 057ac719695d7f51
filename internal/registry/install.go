package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"video-pipeline/internal/plugin"
)

// DefaultIndexURL hosts released plugin manifests by package name.
const DefaultIndexURL = "https://plugins.video-pipeline.dev/index"

// InstallError is a failed plugin installation. The registry is left as
// it was.
type InstallError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error formats the installation failure.
func (e *InstallError) Error() string {
	return fmt.Sprintf("installing %s: %s", e.Source, e.Message)
}

// Unwrap exposes the underlying error.
func (e *InstallError) Unwrap() error { return e.Err }

// Installer fetches plugins into the plugin directory, either by cloning
// a repository or by downloading a released manifest by package name.
type Installer struct {
	PluginDir string
	IndexURL  string

	runner    plugin.Runner
	client    *http.Client
	mkdirAll  func(string, os.FileMode) error
	writeFile func(string, []byte, os.FileMode) error
	stat      func(string) (os.FileInfo, error)
}

// NewInstaller constructs an installer for the given plugin directory.
func NewInstaller(pluginDir string) *Installer {
	return &Installer{
		PluginDir: pluginDir,
		IndexURL:  DefaultIndexURL,
		runner:    &plugin.ExecRunner{},
		client:    http.DefaultClient,
		mkdirAll:  os.MkdirAll,
		writeFile: os.WriteFile,
		stat:      os.Stat,
	}
}

// Install fetches the plugin identified by source and returns the path it
// was installed to. A source containing a URL or .git suffix is cloned;
// anything else is treated as a package name on the release index.
func (i *Installer) Install(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", &InstallError{Source: source, Message: "empty plugin source"}
	}

	if err := i.mkdirAll(i.PluginDir, 0o755); err != nil {
		return "", &InstallError{
			Source:  source,
			Message: fmt.Sprintf("cannot create plugin directory %s", i.PluginDir),
			Err:     err,
		}
	}

	if isRepoSource(source) {
		return i.cloneRepo(ctx, source)
	}
	return i.downloadManifest(ctx, source)
}

// isRepoSource reports whether source should be git-cloned.
func isRepoSource(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://")
}

// cloneRepo shallow-clones the repository into the plugin directory.
func (i *Installer) cloneRepo(ctx context.Context, url string) (string, error) {
	name := repoName(url)
	dest := filepath.Join(i.PluginDir, name)
	if _, err := i.stat(dest); err == nil {
		return "", &InstallError{
			Source:  url,
			Message: fmt.Sprintf("%s already exists; remove it to reinstall", dest),
		}
	}

	result, err := i.runner.Run(ctx, "git", "clone", "--depth", "1", url, dest)
	if err != nil {
		msg := strings.TrimSpace(result.Stderr)
		if msg == "" {
			msg = "git clone failed"
		}
		return "", &InstallError{Source: url, Message: msg, Err: err}
	}
	return dest, nil
}

// repoName derives the checkout directory name from a clone URL.
func repoName(url string) string {
	name := strings.TrimSuffix(url, "/")
	name = strings.TrimSuffix(path.Base(strings.ReplaceAll(name, ":", "/")), ".git")
	if name == "" || name == "." {
		name = "plugin"
	}
	return name
}

// downloadManifest fetches <name>_plugin.yaml from the release index,
// validating it before anything lands in the plugin directory.
func (i *Installer) downloadManifest(ctx context.Context, name string) (string, error) {
	fileName := name + "_plugin.yaml"
	url := strings.TrimSuffix(i.IndexURL, "/") + "/" + fileName

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &InstallError{Source: name, Message: "invalid index URL", Err: err}
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return "", &InstallError{Source: name, Message: "index request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &InstallError{
			Source:  name,
			Message: fmt.Sprintf("index returned %s for %s", resp.Status, fileName),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &InstallError{Source: name, Message: "reading manifest body failed", Err: err}
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return "", &InstallError{Source: name, Message: "downloaded manifest is not valid YAML", Err: err}
	}
	if err := m.Validate(); err != nil {
		return "", &InstallError{Source: name, Message: err.Error(), Err: err}
	}

	dest := filepath.Join(i.PluginDir, fileName)
	if err := i.writeFile(dest, raw, 0o644); err != nil {
		return "", &InstallError{Source: name, Message: "writing manifest failed", Err: err}
	}
	return dest, nil
}
