package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/druarnfield/otto/internal/engine"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	ws, err := New(root, 1700000000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ws
}

func TestProjectHash_StableForSamePath(t *testing.T) {
	a := ProjectHash("/some/project/root")
	b := ProjectHash("/some/project/root")
	if a != b {
		t.Errorf("ProjectHash not stable: %q != %q", a, b)
	}
	if len(a) != 8 {
		t.Errorf("ProjectHash len = %d, want 8", len(a))
	}
	if ProjectHash("/a") == ProjectHash("/b") {
		t.Error("ProjectHash should differ for different paths")
	}
}

func TestNew_DerivesExpectedPaths(t *testing.T) {
	ws := newTestWorkspace(t)

	if filepath.Base(ws.ProjectDir()) != "otto-"+ws.ProjectHash() {
		t.Errorf("ProjectDir = %q, want suffix otto-%s", ws.ProjectDir(), ws.ProjectHash())
	}
	if filepath.Dir(ws.ProjectDir()) != ws.Home() {
		t.Errorf("ProjectDir should live directly under Home")
	}
	if filepath.Base(ws.RunDir()) != "1700000000" {
		t.Errorf("RunDir = %q, want basename 1700000000", ws.RunDir())
	}
	if filepath.Base(ws.TasksDir()) != "tasks" {
		t.Errorf("TasksDir = %q, want basename tasks", ws.TasksDir())
	}
}

func TestInit_CreatesAllDirectories(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, dir := range []string{ws.Home(), ws.ProjectDir(), ws.CacheDir(), ws.RunDir(), ws.TasksDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s exists but is not a directory", dir)
		}
	}
}

func TestEnsureTaskDir_CreatesInputsAndOutputs(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := ws.EnsureTaskDir("build"); err != nil {
		t.Fatalf("EnsureTaskDir: %v", err)
	}
	for _, dir := range []string{ws.TaskDir("build"), ws.InputsDir("build"), ws.OutputsDir("build")} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected %s to exist: %v", dir, err)
		}
	}
}

func TestPathHelpers_NestUnderTaskDir(t *testing.T) {
	ws := newTestWorkspace(t)

	cases := map[string]string{
		ws.ScriptPath("build", "sh"):        "script.sh",
		ws.BuiltinsPath("build", "sh"):      "builtins.sh",
		ws.StdoutLogPath("build", 5):        "stdout.5.log",
		ws.StderrLogPath("build", 5):        "stderr.5.log",
		ws.InputPath("build", "fetch"):      "fetch.input.json",
		ws.OutputPath("build"):              "build.output.json",
	}
	for path, wantBase := range cases {
		if filepath.Base(path) != wantBase {
			t.Errorf("path %q has base %q, want %q", path, filepath.Base(path), wantBase)
		}
		if filepath.Dir(path) != ws.TaskDir("build") && filepath.Dir(filepath.Dir(path)) != ws.TaskDir("build") {
			t.Errorf("path %q does not nest under task_dir(build) = %q", path, ws.TaskDir("build"))
		}
	}
}

func TestWriteRunMetadata_RoundTrips(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	meta := &engine.RunMetadata{
		OttofilePath: "/proj/otto.toml",
		ProjectHash:  ws.ProjectHash(),
		Timestamp:    1700000000,
		Cwd:          "/proj",
		User:         "alice",
		Hostname:     "devbox",
		Argv:         []string{"otto", "run", "build"},
	}
	if err := ws.WriteRunMetadata(meta, "running"); err != nil {
		t.Fatalf("WriteRunMetadata: %v", err)
	}

	data, err := os.ReadFile(ws.RunMetadataPath())
	if err != nil {
		t.Fatalf("reading run.yaml: %v", err)
	}
	body := string(data)
	for _, want := range []string{"ottofile:", "hash:", "timestamp:", "status: running", "cwd:", "user: alice", "hostname: devbox"} {
		if !strings.Contains(body, want) {
			t.Errorf("run.yaml missing %q, got:\n%s", want, body)
		}
	}

	if err := ws.WriteRunMetadata(meta, "success"); err != nil {
		t.Fatalf("WriteRunMetadata (update): %v", err)
	}
	data, err = os.ReadFile(ws.RunMetadataPath())
	if err != nil {
		t.Fatalf("reading run.yaml after update: %v", err)
	}
	if !strings.Contains(string(data), "status: success") {
		t.Errorf("run.yaml should reflect updated status, got:\n%s", string(data))
	}
}
