// Package scaffold writes a starter otto.toml plus a sample task into
// a fresh project directory, for `otto init`.
//
// Grounded on pit's internal/scaffold/scaffold.go (Create: validate a
// name, MkdirAll a handful of directories, write a map of
// path->content files) — simplified to otto's single-file project
// layout (no projects/<name>/ nesting, no pyproject.toml/Python
// packaging since otto tasks are inline scripts, not a Python module).
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
)

// Create scaffolds a new otto project at dir: an otto.toml with one
// sample task and a tasks/ directory for action_file scripts.
func Create(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, "otto.toml")); err == nil {
		return fmt.Errorf("otto.toml already exists in %s", dir)
	}

	tasksDir := filepath.Join(dir, "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", tasksDir, err)
	}

	files := map[string]string{
		filepath.Join(dir, "otto.toml"):             ottoToml(),
		filepath.Join(tasksDir, "hello.sh"):          helloSh(),
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

func ottoToml() string {
	return `[project]
io_limit = 4
cpu_limit = 2
keep_last = 10
keep_days = 30

[[tasks]]
name = "hello"
action_file = "tasks/hello.sh"
`
}

func helloSh() string {
	return `#!/usr/bin/env bash
echo "Hello from otto!"
`
}
