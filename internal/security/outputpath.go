// Package security guards the files written by the block pipeline: export
// and chart names derive from scene names, which a catalog may hold in any
// form, so they are sanitised and confined to the chosen output directory.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxBaseLen bounds generated file name stems.
const maxBaseLen = 128

// OutputBaseName turns a scene name into a file name stem: the extension is
// dropped, runs of characters outside [A-Za-z0-9._-] become one underscore,
// and leading or trailing dots and underscores are trimmed.
func OutputBaseName(sceneName string) string {
	stem := strings.TrimSuffix(sceneName, filepath.Ext(sceneName))

	var b strings.Builder
	pendingUnderscore := false
	for _, r := range stem {
		if b.Len() >= maxBaseLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			if pendingUnderscore {
				b.WriteByte('_')
				pendingUnderscore = false
			}
			b.WriteRune(r)
		default:
			pendingUnderscore = b.Len() > 0
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "scene"
	}
	return out
}

// ValidatePathWithinDirectory reports an error when path, after resolving
// symlinks on its longest existing prefix, lies outside dir. dir must exist.
func ValidatePathWithinDirectory(path, dir string) error {
	canonicalDir, err := canonical(dir)
	if err != nil {
		return fmt.Errorf("resolve directory %s: %w", dir, err)
	}
	canonicalPath, err := canonical(path)
	if err != nil {
		return fmt.Errorf("resolve path %s: %w", path, err)
	}

	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// canonical returns the absolute path with symlinks resolved on the deepest
// ancestor that exists; components below it are kept as given.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", err
	}
	rest := ""
	for cur := abs; ; cur = filepath.Dir(cur) {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if filepath.Dir(cur) == cur {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
	}
}
