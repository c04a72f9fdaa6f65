// Package workspace resolves and prepares per-repository build directories.
package workspace

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// EnvBuildDir is the environment variable overriding the workspace root.
const EnvBuildDir = "PEASANT_BUILD_DIR"

// Root resolves the workspace root directory. Precedence: the per-build
// override, then the PEASANT_BUILD_DIR environment variable, then the OS
// temp directory.
func Root(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(EnvBuildDir); env != "" {
		return env
	}
	return os.TempDir()
}

// Dir returns the workspace directory for a repository under the given
// root. The name is derived from the repository URL alone, so builds of
// the same repository share (and reuse) one checkout.
func Dir(root, repoURL string) string {
	sum := sha1.Sum([]byte(repoURL))
	return filepath.Join(root, "Build_"+hex.EncodeToString(sum[:]))
}

// Ensure creates the directory if it doesn't exist.
func Ensure(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create workspace directory: %w", err)
	}
	return nil
}
