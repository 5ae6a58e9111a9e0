// Package paths provides cross-platform path utilities for Weaver.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultModelsDir returns the platform-specific default models directory for Weaver.
// Returns ~/.weaver/models on Unix-like systems and %USERPROFILE%\.weaver\models on Windows.
// Falls back to "./models" if home directory cannot be determined.
func DefaultModelsDir() string {
	home := userHomeDir()
	if home == "" {
		return filepath.FromSlash("./models") // no resolvable home, cache beside the binary
	}
	return filepath.Join(home, ".weaver", "models")
}

// userHomeDir returns the user's home directory in a cross-platform manner.
// On Unix: $HOME
// On Windows: %USERPROFILE% (preferred) or %HOMEDRIVE%%HOMEPATH%
// Note: On Windows, we check USERPROFILE first because $HOME from Git Bash/MSYS2
// may contain Unix-style paths (e.g., /c/Users/...) that don't work with Windows APIs.
func userHomeDir() string {
	// Windows-specific: prefer USERPROFILE over a possibly Unix-style $HOME
	if runtime.GOOS == "windows" {
		if home := os.Getenv("USERPROFILE"); home != "" {
			return home
		}
		// Fallback to HOMEDRIVE+HOMEPATH
		if drive, path := os.Getenv("HOMEDRIVE"), os.Getenv("HOMEPATH"); drive != "" && path != "" {
			return filepath.Join(drive, path)
		}
	}

	// Unix: use $HOME
	if home := os.Getenv("HOME"); home != "" {
		return home
	}

	// Go's own resolution as last resort
	home, _ := os.UserHomeDir()
	return home
}
