// Package action turns a Task's raw action text into a materialized,
// executable script on disk: a tagged ProcessedAction ({Bash, Python3}),
// produced by sniffing the action's shebang the way pit's
// internal/runner.Resolve dispatches by extension, and generating the
// prologue/epilogue/builtins content the way otto-rs's
// src/executor/action.rs does (same OTTO_INPUT/OTTO_OUTPUT associative
// arrays, same otto_deserialize_input/otto_serialize_output names).
package action

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/druarnfield/otto/internal/engine"
	"github.com/druarnfield/otto/internal/workspace"
)

// Language is the tagged kind of a ProcessedAction.
type Language string

const (
	Bash    Language = "bash"
	Python3 Language = "python3"
)

// ProcessedAction is the materialized result of processing a Task's
// action text: a script file plus a builtins file, both written under
// the task's workspace directory, ready for the scheduler to exec.
type ProcessedAction struct {
	Language     Language
	ScriptPath   string
	BuiltinsPath string
	Interpreter  string // argv[0] for the scheduler to spawn
	Hash         string // first 8 hex of sha256 over the materialized script
}

// Processor materializes a Task's action into a ProcessedAction inside
// a Workspace, writing script.<ext> and builtins.<ext> into the task's
// directory.
type Processor struct {
	ws *workspace.Workspace
}

func New(ws *workspace.Workspace) *Processor {
	return &Processor{ws: ws}
}

// Process writes the task's script and builtins files and returns the
// ProcessedAction describing how to run them. predecessors lists the
// task-dependency names whose outputs this task may read as input.
func (p *Processor) Process(t *engine.Task, predecessors []string) (*ProcessedAction, error) {
	lang := detectLanguage(t.Action)

	if err := p.ws.EnsureTaskDir(t.Name); err != nil {
		return nil, err
	}

	var (
		ext         string
		interpreter string
		builtins    string
		prologue    string
		epilogue    string
	)

	switch lang {
	case Bash:
		ext = "sh"
		interpreter = "bash"
		builtins = bashBuiltins
		prologue = bashPrologue(t, predecessors)
		epilogue = bashEpilogue(t.Name)
	case Python3:
		ext = "py"
		interpreter = "python3"
		builtins = pythonBuiltins
		prologue = pythonPrologue(t, predecessors)
		epilogue = pythonEpilogue(t.Name)
	default:
		return nil, engine.NewTaskError(engine.ErrScript, t.Name, fmt.Errorf("unrecognized action language"))
	}

	builtinsPath := p.ws.BuiltinsPath(t.Name, ext)
	if err := os.WriteFile(builtinsPath, []byte(builtins), 0o755); err != nil {
		return nil, engine.NewTaskError(engine.ErrScript, t.Name, fmt.Errorf("writing builtins: %w", err))
	}

	shebang := shebangLine(t.Action, lang)
	body := stripShebang(t.Action)
	script := shebang + "\n" + prologue + "\n" + body + "\n" + epilogue

	scriptPath := p.ws.ScriptPath(t.Name, ext)
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return nil, engine.NewTaskError(engine.ErrScript, t.Name, fmt.Errorf("writing script: %w", err))
	}

	sum := sha256.Sum256([]byte(script))

	return &ProcessedAction{
		Language:     lang,
		ScriptPath:   scriptPath,
		BuiltinsPath: builtinsPath,
		Interpreter:  interpreter,
		Hash:         hex.EncodeToString(sum[:])[:8],
	}, nil
}

// detectLanguage sniffs the action's shebang line. No shebang defaults
// to Bash, otto's default action language.
func detectLanguage(action string) Language {
	line, _, _ := strings.Cut(action, "\n")
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#!") {
		switch {
		case strings.Contains(line, "python3"), strings.Contains(line, "python"):
			return Python3
		case strings.Contains(line, "bash"), strings.Contains(line, "sh"):
			return Bash
		}
	}
	return Bash
}

// shebangLine returns the action's original shebang line verbatim, or
// the default shebang for lang if the action didn't declare one — per
// spec.md §4.2 layout item 1, "Shebang line (original or defaulted)"
// is always the materialized script's first line.
func shebangLine(action string, lang Language) string {
	line, _, _ := strings.Cut(action, "\n")
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#!") {
		return line
	}
	switch lang {
	case Python3:
		return "#!/usr/bin/env python3"
	default:
		return "#!/bin/bash"
	}
}

func stripShebang(action string) string {
	if !strings.HasPrefix(action, "#!") {
		return action
	}
	_, rest, found := strings.Cut(action, "\n")
	if !found {
		return ""
	}
	return rest
}

// envSection emits one export per (k,v) in t.Envs that isn't also a
// CLI parameter name in t.Values — those are handled by paramSection
// instead. The value is emitted unquoted so the child shell performs
// its own expansion on it.
func envSection(t *engine.Task) string {
	names := make([]string, 0, len(t.Envs))
	for k := range t.Envs {
		if _, isParam := t.Values[k]; isParam {
			continue
		}
		names = append(names, k)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "export %s=%s\n", strings.ToUpper(name), t.Envs[name])
	}
	return b.String()
}

// paramSection emits, for every name in t.Values, a plain literal-string
// assignment of t.Envs[name] — per spec the parameter's bound value lives
// in Envs, and Values only marks which names are parameters rather than
// plain exported environment variables (see envSection).
func paramSection(t *engine.Task, pythonStyle bool) string {
	if len(t.Values) == 0 {
		return ""
	}
	names := make([]string, 0, len(t.Values))
	for k := range t.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		if pythonStyle {
			fmt.Fprintf(&b, "%s = %q\n", name, t.Envs[name])
		} else {
			fmt.Fprintf(&b, "%s=%q\n", name, t.Envs[name])
		}
	}
	return b.String()
}
