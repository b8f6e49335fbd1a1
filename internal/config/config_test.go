package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeOttoToml(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "otto.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_Minimal(t *testing.T) {
	dir := t.TempDir()
	writeOttoToml(t, dir, `
[project]
io_limit = 2
cpu_limit = 1

[[tasks]]
name = "hello"
action = "echo hi"
`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if cfg.Project.IOLimit != 2 || cfg.Project.CPULimit != 1 {
		t.Errorf("Project = %+v, want IOLimit=2 CPULimit=1", cfg.Project)
	}
	if len(cfg.Tasks) != 1 || cfg.Tasks[0].Name != "hello" {
		t.Fatalf("Tasks = %+v", cfg.Tasks)
	}
}

func TestTasks_ResolvesActionFileAndGlobs(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "build.sh"), []byte("#!/bin/bash\necho build\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	writeOttoToml(t, dir, `
[[tasks]]
name = "build"
action_file = "build.sh"
file_deps = ["src/**/*.go"]
output_deps = ["bin/app"]
`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	tasks, err := cfg.Tasks()
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}

	build, ok := tasks["build"]
	if !ok {
		t.Fatal("missing build task")
	}
	if build.Action != "#!/bin/bash\necho build\n" {
		t.Errorf("Action = %q, want the contents of build.sh", build.Action)
	}
	if len(build.FileDeps) != 1 || filepath.Base(build.FileDeps[0]) != "main.go" {
		t.Errorf("FileDeps = %v, want src/main.go expanded from the glob", build.FileDeps)
	}
	if len(build.OutputDeps) != 1 {
		t.Errorf("OutputDeps = %v, want the literal bin/app path kept (no matches)", build.OutputDeps)
	}
}

func TestDefs_CarriesRawRelations(t *testing.T) {
	dir := t.TempDir()
	writeOttoToml(t, dir, `
[[tasks]]
name = "a"
action = "echo a"

[[tasks]]
name = "b"
action = "echo b"
deps = ["a"]
`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	defs, err := cfg.Defs()
	if err != nil {
		t.Fatalf("Defs: %v", err)
	}
	if len(defs["b"].Deps) != 1 || defs["b"].Deps[0] != "a" {
		t.Errorf("b.Deps = %v, want [a]", defs["b"].Deps)
	}
}

func TestTasks_DuplicateNameRejected(t *testing.T) {
	dir := t.TempDir()
	writeOttoToml(t, dir, `
[[tasks]]
name = "dup"
action = "echo 1"

[[tasks]]
name = "dup"
action = "echo 2"
`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if _, err := cfg.Tasks(); err == nil {
		t.Error("Tasks() expected error for duplicate name, got nil")
	}
}

func TestLoadFromDir_MissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromDir(dir); err == nil {
		t.Error("LoadFromDir expected error when otto.toml is missing, got nil")
	}
}
