package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestWatchDirSignalsOnManifestWrite collapses a write burst into one signal.
func TestWatchDirSignalsOnManifestWrite(t *testing.T) {
	dir := t.TempDir()
	w, err := WatchDir(dir, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "watermark_plugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validManifest), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(validManifest), 0o644))

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal after manifest write")
	}
}
