// Package config parses otto.toml into the engine.Task input model the
// core requires, plus project-level scheduler settings.
//
// Grounded on pit's internal/config/config.go (toml.Unmarshal into a
// tagged struct tree, Load/Discover shape) and pit_config.go
// (workspace-level optional-file pattern). file_deps/output_deps
// globbing uses github.com/bmatcuk/doublestar (the vercel-turborepo
// dependency) instead of stdlib filepath.Glob: file_deps and
// output_deps need to be glob-expanded against the project root before
// the engine sees them, and doublestar's ** support is what a real
// build-file format would offer over filepath.Glob's single-level
// matching.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar"

	"github.com/druarnfield/otto/internal/engine"
	"github.com/druarnfield/otto/internal/graph"
)

// ProjectSettings holds the [project] table: scheduler caps (read by
// `otto run`) plus retention and database-path keys. The retention and
// runs_db_path keys are parsed but not read by any command: `otto clean`
// takes its policy from its own flags, and the StateStore path comes
// from --db or ~/.otto/otto.db.
type ProjectSettings struct {
	IOLimit         int    `toml:"io_limit"`
	CPULimit        int    `toml:"cpu_limit"`
	KeepLast        int    `toml:"keep_last"`
	KeepDays        int    `toml:"keep_days"`
	KeepFailedDays  *int   `toml:"keep_failed_days"`
	RunsDBPath      string `toml:"runs_db_path"` // relative to ~/.otto, empty = default
}

// TaskSpec is a single `[[tasks]]` entry.
type TaskSpec struct {
	Name           string            `toml:"name"`
	Action         string            `toml:"action"`      // inline script text
	ActionFile     string            `toml:"action_file"` // path to a script file, relative to the otto.toml dir
	Deps           []string          `toml:"deps"`
	Before         []string          `toml:"before"`
	After          []string          `toml:"after"`
	FileDeps       []string          `toml:"file_deps"`   // glob patterns, relative to project root
	OutputDeps     []string          `toml:"output_deps"` // glob patterns or literal paths
	Envs           map[string]string `toml:"envs"`
	Values         map[string]string `toml:"values"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
}

// ProjectConfig is the parsed form of an otto.toml file.
type ProjectConfig struct {
	Project ProjectSettings `toml:"project"`
	Tasks   []TaskSpec      `toml:"tasks"`

	path string
	dir  string
}

// Path returns the filesystem path this config was loaded from.
func (p *ProjectConfig) Path() string { return p.path }

// Dir returns the directory containing otto.toml — the project root.
func (p *ProjectConfig) Dir() string { return p.dir }

// Load parses path (an otto.toml file) into a ProjectConfig.
func Load(path string) (*ProjectConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", absPath, err)
	}

	var cfg ProjectConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", absPath, err)
	}

	cfg.path = absPath
	cfg.dir = filepath.Dir(absPath)
	return &cfg, nil
}

// LoadFromDir loads "otto.toml" out of dir. Returns an error (not nil,
// nil) if it's missing — unlike pit's workspace-level config, an otto
// project's task definitions are mandatory once a project-dir is named.
func LoadFromDir(dir string) (*ProjectConfig, error) {
	return Load(filepath.Join(dir, "otto.toml"))
}

// Tasks resolves every TaskSpec into an engine.Task, expanding
// file_deps/output_deps globs against the project root and reading
// ActionFile contents where given.
func (p *ProjectConfig) Tasks() (map[string]*engine.Task, error) {
	out := make(map[string]*engine.Task, len(p.Tasks))
	for _, spec := range p.Tasks {
		if spec.Name == "" {
			return nil, fmt.Errorf("otto.toml: task with empty name")
		}
		if _, dup := out[spec.Name]; dup {
			return nil, fmt.Errorf("otto.toml: duplicate task name %q", spec.Name)
		}

		action := spec.Action
		if spec.ActionFile != "" {
			data, err := os.ReadFile(filepath.Join(p.dir, spec.ActionFile))
			if err != nil {
				return nil, fmt.Errorf("task %q: reading action_file: %w", spec.Name, err)
			}
			action = string(data)
		}

		fileDeps, err := p.expandGlobs(spec.FileDeps)
		if err != nil {
			return nil, fmt.Errorf("task %q: file_deps: %w", spec.Name, err)
		}
		outputDeps, err := p.expandGlobs(spec.OutputDeps)
		if err != nil {
			return nil, fmt.Errorf("task %q: output_deps: %w", spec.Name, err)
		}

		out[spec.Name] = &engine.Task{
			Name:           spec.Name,
			Action:         action,
			FileDeps:       fileDeps,
			OutputDeps:     outputDeps,
			Envs:           spec.Envs,
			Values:         spec.Values,
			TimeoutSeconds: spec.TimeoutSeconds,
		}
	}
	return out, nil
}

// Defs resolves every TaskSpec into a graph.Def, ready for graph.Build.
func (p *ProjectConfig) Defs() (map[string]*graph.Def, error) {
	tasks, err := p.Tasks()
	if err != nil {
		return nil, err
	}
	defs := make(map[string]*graph.Def, len(p.Tasks))
	for _, spec := range p.Tasks {
		defs[spec.Name] = &graph.Def{
			Task:   tasks[spec.Name],
			Deps:   spec.Deps,
			Before: spec.Before,
			After:  spec.After,
		}
	}
	return defs, nil
}

// expandGlobs resolves each pattern against the project root. A
// pattern matching nothing is kept as a literal path (output_deps
// frequently name files that don't exist yet).
func (p *ProjectConfig) expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		abs := pattern
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(p.dir, pattern)
		}
		matches, err := doublestar.Glob(abs)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			matches = []string{abs}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
