package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Scene_1_frame_2.npy", "Scene_1_frame_2"},
		{"../../etc/passwd", "etc_passwd"},
		{"Scene 3 / frame 4.npy", "Scene_3_frame_4"},
		{"...", "scene"},
		{"", "scene"},
		{"a//b", "a_b"},
	}
	for _, tt := range tests {
		if got := OutputBaseName(tt.in); got != tt.want {
			t.Errorf("OutputBaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := OutputBaseName(strings.Repeat("x", 500))
	if len(long) != maxBaseLen {
		t.Errorf("expected length %d, got %d", maxBaseLen, len(long))
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	for _, d := range []string{safeDir, unsafeDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	if err := os.Symlink(unsafeDir, filepath.Join(safeDir, "evil-symlink")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "Scene_1_data.npy"), false},
		{"not yet created subdirectory", filepath.Join(safeDir, "a", "b.npy"), false},
		{"parent traversal", filepath.Join(safeDir, "..", "unsafe", "x.npy"), true},
		{"symlinked directory", filepath.Join(safeDir, "evil-symlink", "x.npy"), true},
		{"absolute outside", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.path, err, tt.wantError)
			}
		})
	}
}
