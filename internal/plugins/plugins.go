// Package plugins contains the built-in pipeline stages. Each stage wraps
// an external tool behind a subprocess call; none reimplements the tool.
package plugins

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// formatFloat renders a float setting for CLI argument lists.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ensureParentDir creates the parent directory for a target file path.
func ensureParentDir(path string, mkdirAll func(string, os.FileMode) error) error {
	return mkdirAll(filepath.Dir(path), 0o755)
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// missingTools joins missing dependency names into a health message.
func missingTools(missing []string) string {
	msg := "Missing: "
	for i, name := range missing {
		if i > 0 {
			msg += ", "
		}
		msg += name
	}
	return msg
}

// suffixOrMP4 returns a path's extension, defaulting to .mp4.
func suffixOrMP4(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".mp4"
}
