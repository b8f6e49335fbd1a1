package scaffold

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreate(t *testing.T) {
	root := t.TempDir()

	if err := Create(root); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	wantFiles := []string{
		"otto.toml",
		"tasks/hello.sh",
	}
	for _, f := range wantFiles {
		path := filepath.Join(root, f)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing expected file: %s", f)
		}
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	root := t.TempDir()

	if err := Create(root); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}

	if err := Create(root); err == nil {
		t.Error("second Create() expected error for existing otto.toml, got nil")
	}
}
