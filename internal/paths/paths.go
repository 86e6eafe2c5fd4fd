// Package paths provides path resolution utilities.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvUserData overrides the user data directory.
const EnvUserData = "ERWT_USER_DATA"

// UserDataDir resolves the per-user data directory for appName.
//
// Resolution order:
//   - override, when non-empty
//   - $ERWT_USER_DATA, when set
//   - os.UserConfigDir()/appName
//
// If the resolved directory contains a "redirect" file, its trimmed content
// (relative to the directory, or absolute) is followed once. Portable
// installs use this to keep data next to the executable.
func UserDataDir(appName, override string) (string, error) {
	dir := override
	if dir == "" {
		dir = os.Getenv(EnvUserData)
	}
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolve user config dir: %w", err)
		}
		dir = filepath.Join(base, appName)
	}
	return followRedirect(filepath.Clean(dir)), nil
}

// followRedirect checks for a redirect file and follows it if present.
func followRedirect(dir string) string {
	content, err := os.ReadFile(filepath.Join(dir, "redirect")) //nolint:gosec // redirect path is within the data dir
	if err != nil {
		return dir
	}

	target := strings.TrimSpace(string(content))
	if target == "" {
		return dir
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(dir, target))
}

// DefaultConfigPath returns <user config dir>/<appName>/config.yaml.
func DefaultConfigPath(appName string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, appName, "config.yaml"), nil
}
