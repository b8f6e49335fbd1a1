package action

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/druarnfield/otto/internal/engine"
	"github.com/druarnfield/otto/internal/workspace"
)

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	ws, err := workspace.New(root, time.Now().Unix())
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	if err := ws.Init(); err != nil {
		t.Fatalf("ws.Init: %v", err)
	}
	return ws
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name   string
		action string
		want   Language
	}{
		{name: "bash shebang", action: "#!/bin/bash\necho hi", want: Bash},
		{name: "sh shebang", action: "#!/usr/bin/env sh\necho hi", want: Bash},
		{name: "python3 shebang", action: "#!/usr/bin/env python3\nprint('hi')", want: Python3},
		{name: "python shebang", action: "#!/usr/bin/python\nprint('hi')", want: Python3},
		{name: "no shebang defaults to bash", action: "echo hi", want: Bash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectLanguage(tt.action); got != tt.want {
				t.Errorf("detectLanguage(%q) = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestProcess_Bash(t *testing.T) {
	ws := newTestWorkspace(t)
	p := New(ws)

	task := &engine.Task{
		Name:   "build",
		Action: "#!/bin/bash\necho building",
		Envs:   map[string]string{"stage": "prod"},
	}

	pa, err := p.Process(task, []string{"fetch"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if pa.Language != Bash {
		t.Errorf("Language = %v, want Bash", pa.Language)
	}
	if pa.Interpreter != "bash" {
		t.Errorf("Interpreter = %q, want bash", pa.Interpreter)
	}
	if len(pa.Hash) != 8 {
		t.Errorf("Hash = %q, want 8 hex chars", pa.Hash)
	}

	script, err := os.ReadFile(pa.ScriptPath)
	if err != nil {
		t.Fatalf("reading script: %v", err)
	}
	body := string(script)
	if !strings.Contains(body, "source \"$(dirname \"$0\")/builtins.sh\"") {
		t.Error("script missing builtins source line")
	}
	if !strings.Contains(body, `otto_deserialize_input "fetch"`) {
		t.Error("script missing predecessor input deserialization")
	}
	if !strings.Contains(body, `otto_serialize_output "build"`) {
		t.Error("script missing output serialization")
	}
	if !strings.Contains(body, "echo building") {
		t.Error("script missing action body")
	}
	if strings.Contains(body, "#!/bin/bash\necho building") {
		t.Error("shebang line should be stripped from the materialized body")
	}
	if !strings.HasPrefix(body, "#!/bin/bash\n") {
		t.Error("materialized script should start with the action's shebang line")
	}

	builtins, err := os.ReadFile(pa.BuiltinsPath)
	if err != nil {
		t.Fatalf("reading builtins: %v", err)
	}
	if !strings.Contains(string(builtins), "otto_serialize_output()") {
		t.Error("builtins.sh missing otto_serialize_output")
	}

	info, err := os.Stat(pa.BuiltinsPath)
	if err != nil {
		t.Fatalf("stat builtins: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Error("builtins.sh should be executable")
	}
}

func TestProcess_Python(t *testing.T) {
	ws := newTestWorkspace(t)
	p := New(ws)

	task := &engine.Task{
		Name:   "report",
		Action: "#!/usr/bin/env python3\nprint('hi')",
	}

	pa, err := p.Process(task, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if pa.Language != Python3 {
		t.Errorf("Language = %v, want Python3", pa.Language)
	}
	if filepath.Ext(pa.ScriptPath) != ".py" {
		t.Errorf("ScriptPath = %q, want .py extension", pa.ScriptPath)
	}

	script, err := os.ReadFile(pa.ScriptPath)
	if err != nil {
		t.Fatalf("reading script: %v", err)
	}
	if !strings.Contains(string(script), "otto_serialize_output(\"report\")") {
		t.Error("script missing output serialization call")
	}
	if !strings.HasPrefix(string(script), "#!/usr/bin/env python3\n") {
		t.Error("materialized script should start with the action's shebang line")
	}
}

func TestProcess_UnknownLanguageDefaultsBash(t *testing.T) {
	ws := newTestWorkspace(t)
	p := New(ws)

	task := &engine.Task{Name: "plain", Action: "echo no-shebang"}
	pa, err := p.Process(task, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if pa.Language != Bash {
		t.Errorf("Language = %v, want Bash default", pa.Language)
	}

	script, err := os.ReadFile(pa.ScriptPath)
	if err != nil {
		t.Fatalf("reading script: %v", err)
	}
	if !strings.HasPrefix(string(script), "#!/bin/bash\n") {
		t.Error("materialized script should default to a bash shebang when none was given")
	}
}
