// Package config holds configuration helpers shared by the kvitto commands.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a user-supplied file path: a leading ~ becomes the
// home directory and $VAR / ${VAR} references are expanded. Paths that do
// not use either form pass through unchanged. If the home directory cannot
// be determined the ~ is left as-is rather than failing.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return path
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return os.ExpandEnv(path)
}
