package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidationError represents a path validation error with details.
type PathValidationError struct {
	Path    string
	Reason  string
	Wrapped error
}

func (e *PathValidationError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("invalid path %q: %s: %v", e.Path, e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

func (e *PathValidationError) Unwrap() error {
	return e.Wrapped
}

// ValidateAndResolvePath validates that a file exists and is readable,
// then returns its absolute path.
func ValidateAndResolvePath(path string) (string, error) {
	if path == "" {
		return "", &PathValidationError{Path: path, Reason: "path cannot be empty"}
	}

	path = ExpandHome(path)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", &PathValidationError{Path: path, Reason: "failed to resolve absolute path", Wrapped: err}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &PathValidationError{Path: absPath, Reason: "file does not exist"}
		}
		return "", &PathValidationError{Path: absPath, Reason: "failed to stat file", Wrapped: err}
	}
	if info.IsDir() {
		return "", &PathValidationError{Path: absPath, Reason: "path is a directory, not a file"}
	}

	file, err := os.Open(absPath)
	if err != nil {
		return "", &PathValidationError{Path: absPath, Reason: "file is not readable", Wrapped: err}
	}
	_ = file.Close()
	return absPath, nil
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	return path
}

// IsValidPath checks if a path is valid without returning detailed error.
func IsValidPath(path string) bool {
	_, err := ValidateAndResolvePath(path)
	return err == nil
}
