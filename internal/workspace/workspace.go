// Package workspace owns the on-disk layout for a project and a single
// run: deterministic path derivation from (project_root, run_timestamp),
// grounded on otto-rs's src/executor/workspace.rs and the directory
// creation sequence in pit's internal/engine/snapshot.go.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/druarnfield/otto/internal/engine"
)

// Workspace is a pure function of (project root, timestamp) once
// constructed; it is never mutated after New.
type Workspace struct {
	home        string
	projectRoot string
	projectHash string
	timestamp   int64

	projectDir string
	cacheDir   string
	runDir     string
	tasksDir   string
}

// ProjectHash returns the first 8 hex chars of SHA-256 over the
// canonicalized project root path — the stable identifier used for
// both the on-disk project_dir and the StateStore's projects.hash.
func ProjectHash(canonicalRoot string) string {
	sum := sha256.Sum256([]byte(canonicalRoot))
	return hex.EncodeToString(sum[:])[:8]
}

// New canonicalizes projectRoot and derives every path for the given
// run timestamp. It does not touch the filesystem; call Init to create
// the directories.
func New(projectRoot string, timestamp int64) (*Workspace, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, engine.NewError(engine.ErrWorkspace, fmt.Errorf("resolving project root: %w", err))
	}
	// Canonicalize when possible; the root may not exist yet (e.g. a
	// dry `otto graph` invocation), in which case the absolute path
	// is used as-is.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	home := os.Getenv("HOME")
	if home == "" {
		return nil, engine.NewError(engine.ErrWorkspace, fmt.Errorf("HOME is not set"))
	}
	ottoHome := filepath.Join(home, ".otto")

	hash := ProjectHash(root)
	projectDir := filepath.Join(ottoHome, "otto-"+hash)
	cacheDir := filepath.Join(projectDir, ".cache")
	runDir := filepath.Join(projectDir, fmt.Sprintf("%d", timestamp))
	tasksDir := filepath.Join(runDir, "tasks")

	return &Workspace{
		home:        ottoHome,
		projectRoot: root,
		projectHash: hash,
		timestamp:   timestamp,
		projectDir:  projectDir,
		cacheDir:    cacheDir,
		runDir:      runDir,
		tasksDir:    tasksDir,
	}, nil
}

// Init creates home, project_dir, cache_dir, run_dir, and tasks_dir.
func (w *Workspace) Init() error {
	for _, dir := range []string{w.home, w.projectDir, w.cacheDir, w.runDir, w.tasksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return engine.NewError(engine.ErrWorkspace, fmt.Errorf("creating %s: %w", dir, err))
		}
	}
	return nil
}

func (w *Workspace) Home() string        { return w.home }
func (w *Workspace) ProjectRoot() string  { return w.projectRoot }
func (w *Workspace) ProjectHash() string  { return w.projectHash }
func (w *Workspace) Timestamp() int64     { return w.timestamp }
func (w *Workspace) ProjectDir() string   { return w.projectDir }
func (w *Workspace) CacheDir() string     { return w.cacheDir }
func (w *Workspace) RunDir() string       { return w.runDir }
func (w *Workspace) TasksDir() string     { return w.tasksDir }

// RunMetadataPath returns run_dir/run.yaml.
func (w *Workspace) RunMetadataPath() string {
	return filepath.Join(w.runDir, "run.yaml")
}

// runMetadataFile is the on-disk shape of run.yaml: consumers
// tolerate missing optional keys, so every optional field is
// omitempty.
type runMetadataFile struct {
	Ottofile  string   `yaml:"ottofile"`
	Hash      string   `yaml:"hash"`
	Timestamp int64    `yaml:"timestamp"`
	Status    string   `yaml:"status"`
	Cwd       string   `yaml:"cwd,omitempty"`
	User      string   `yaml:"user,omitempty"`
	Hostname  string   `yaml:"hostname,omitempty"`
	Args      []string `yaml:"args,omitempty"`
}

// WriteRunMetadata writes run_dir/run.yaml for meta with the given
// status, atomically (write-then-rename, same contract as the
// builtins' output serialization).
func (w *Workspace) WriteRunMetadata(meta *engine.RunMetadata, status string) error {
	rec := runMetadataFile{
		Ottofile:  meta.OttofilePath,
		Hash:      meta.ProjectHash,
		Timestamp: meta.Timestamp,
		Status:    status,
		Cwd:       meta.Cwd,
		User:      meta.User,
		Hostname:  meta.Hostname,
		Args:      meta.Argv,
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return engine.NewError(engine.ErrWorkspace, fmt.Errorf("marshaling run metadata: %w", err))
	}
	path := w.RunMetadataPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return engine.NewError(engine.ErrWorkspace, fmt.Errorf("writing run metadata: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return engine.NewError(engine.ErrWorkspace, fmt.Errorf("renaming run metadata into place: %w", err))
	}
	return nil
}

// TaskDir returns tasks_dir/<name>.
func (w *Workspace) TaskDir(name string) string {
	return filepath.Join(w.tasksDir, name)
}

// ScriptPath returns task_dir(name)/script.<ext>.
func (w *Workspace) ScriptPath(name, ext string) string {
	return filepath.Join(w.TaskDir(name), "script."+ext)
}

// BuiltinsPath returns task_dir(name)/builtins.<ext>.
func (w *Workspace) BuiltinsPath(name, ext string) string {
	return filepath.Join(w.TaskDir(name), "builtins."+ext)
}

// StdoutLogPath returns task_dir(name)/stdout.<ts>.log.
func (w *Workspace) StdoutLogPath(name string, ts int64) string {
	return filepath.Join(w.TaskDir(name), fmt.Sprintf("stdout.%d.log", ts))
}

// StderrLogPath returns task_dir(name)/stderr.<ts>.log.
func (w *Workspace) StderrLogPath(name string, ts int64) string {
	return filepath.Join(w.TaskDir(name), fmt.Sprintf("stderr.%d.log", ts))
}

// InputPath returns task_dir(name)/inputs/<predecessor>.input.json.
func (w *Workspace) InputPath(name, predecessor string) string {
	return filepath.Join(w.TaskDir(name), "inputs", predecessor+".input.json")
}

// InputsDir returns task_dir(name)/inputs.
func (w *Workspace) InputsDir(name string) string {
	return filepath.Join(w.TaskDir(name), "inputs")
}

// OutputPath returns task_dir(name)/outputs/<name>.output.json.
func (w *Workspace) OutputPath(name string) string {
	return filepath.Join(w.TaskDir(name), "outputs", name+".output.json")
}

// OutputsDir returns task_dir(name)/outputs.
func (w *Workspace) OutputsDir(name string) string {
	return filepath.Join(w.TaskDir(name), "outputs")
}

// EnsureTaskDir creates task_dir(name), its inputs/, and its outputs/
// subdirectories.
func (w *Workspace) EnsureTaskDir(name string) error {
	for _, dir := range []string{w.TaskDir(name), w.InputsDir(name), w.OutputsDir(name)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return engine.NewTaskError(engine.ErrWorkspace, name, fmt.Errorf("creating %s: %w", dir, err))
		}
	}
	return nil
}
