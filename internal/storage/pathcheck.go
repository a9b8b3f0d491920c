package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/memo/internal/errors"
)

// ValidateExportPath checks a user-supplied export destination:
//  1. no ".." components
//  2. an extension matching format (.jsonl, or .yaml/.yml)
//  3. when allowedDirs is non-empty, the file sits directly in one of them
//  4. neither the parent directory nor the file is a symlink
//
// Requiring the file to be directly inside an allowed directory leaves no
// intermediate component that could be swapped for a symlink after the check.
func ValidateExportPath(path string, format ExportFormat, allowedDirs []string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !hasExportExtension(cleaned, format) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have a .%s extension", format))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	parentDir := filepath.Dir(absPath)

	if len(allowedDirs) > 0 {
		allowed, err := resolveDirs(allowedDirs)
		if err != nil {
			return err
		}
		if !isDirectlyIn(parentDir, allowed) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", allowed))
		}
	}

	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

func hasExportExtension(path string, format ExportFormat) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch format {
	case ExportYAML:
		return ext == ".yaml" || ext == ".yml"
	case ExportJSONL, "":
		return ext == ".jsonl"
	}
	return false
}

// resolveDirs makes each directory absolute and resolves a symlinked entry
// to its target so comparisons happen on real paths.
func resolveDirs(dirs []string) ([]string, error) {
	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

func isDirectlyIn(parentDir string, dirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range dirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
