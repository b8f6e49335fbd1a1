package action

import (
	"fmt"
	"sort"
	"strings"

	"github.com/druarnfield/otto/internal/engine"
)

func pythonPrologue(t *engine.Task, predecessors []string) string {
	var input strings.Builder
	if len(predecessors) > 0 {
		input.WriteString("# Input Loading\n")
		input.WriteString(strings.Repeat("#", 80) + "\n")
		for _, dep := range predecessors {
			fmt.Fprintf(&input, "otto_deserialize_input(%q)\n", dep)
		}
	}

	var params strings.Builder
	if section := paramSection(t, true); section != "" {
		params.WriteString("# Parameter Assignments\n")
		params.WriteString(strings.Repeat("#", 80) + "\n")
		params.WriteString(section)
	}

	var env strings.Builder
	if section := pythonEnvSection(t); section != "" {
		env.WriteString("# Environment Variables\n")
		env.WriteString(strings.Repeat("#", 80) + "\n")
		env.WriteString(section)
	}

	return fmt.Sprintf(`# Otto-generated python prologue
import json
import os
import glob
import sys

# Set Otto environment variables
os.environ['OTTO_TASK_DIR'] = os.path.dirname(__file__)

# Import Otto builtins
import importlib.util
builtins_path = os.path.join(os.path.dirname(__file__), 'builtins.py')
spec = importlib.util.spec_from_file_location("otto_builtins", builtins_path)
otto_builtins = importlib.util.module_from_spec(spec)
spec.loader.exec_module(otto_builtins)

otto_get_input = otto_builtins.otto_get_input
otto_set_output = otto_builtins.otto_set_output
otto_deserialize_input = otto_builtins.otto_deserialize_input
otto_serialize_output = otto_builtins.otto_serialize_output

OTTO_INPUT = {}
OTTO_OUTPUT = {}

%s
%s
%s`, env.String(), input.String(), params.String())
}

func pythonEpilogue(taskName string) string {
	return fmt.Sprintf(`
# Output Serialization
################################################################################
# Serialize OTTO_OUTPUT to outputs/%s.output.json using builtins
otto_serialize_output(%q)
`, taskName, taskName)
}

func pythonEnvSection(t *engine.Task) string {
	if len(t.Envs) == 0 {
		return ""
	}
	names := make([]string, 0, len(t.Envs))
	for k := range t.Envs {
		if _, isParam := t.Values[k]; isParam {
			continue
		}
		names = append(names, k)
	}
	// sorted for determinism, same as the bash variant
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "os.environ[%q] = %q\n", strings.ToUpper(name), t.Envs[name])
	}
	return b.String()
}

// pythonBuiltins is otto-rs's builtins.py, adapted so output
// serialization always goes through a temp-file-then-rename, matching
// the atomic-write guarantee the bash builtins already provide.
const pythonBuiltins = `"""Otto Python Builtins
Functions to handle input/output file serialization
"""

import json
import os
import sys


def otto_deserialize_input(task_name):
    """Deserialize inputs/<task-name>.input.json -> OTTO_INPUT"""
    import __main__

    task_dir = os.environ.get('OTTO_TASK_DIR', '.')
    input_file = os.path.join(task_dir, 'inputs', f'{task_name}.input.json')

    if os.path.exists(input_file):
        try:
            with open(input_file, 'r') as f:
                data = json.load(f)

            if not hasattr(__main__, 'OTTO_INPUT'):
                __main__.OTTO_INPUT = {}

            for key, value in data.items():
                __main__.OTTO_INPUT[f'{task_name}.{key}'] = value

        except (json.JSONDecodeError, IOError) as e:
            print(f'Error: Failed to deserialize input from {task_name}: {e}', file=sys.stderr)
            return False
    return True


def otto_serialize_output(task_name):
    """Serialize OTTO_OUTPUT -> outputs/<task-name>.output.json"""
    import __main__

    task_dir = os.environ.get('OTTO_TASK_DIR', '.')
    output_dir = os.path.join(task_dir, 'outputs')
    output_file = os.path.join(output_dir, f'{task_name}.output.json')
    temp_file = output_file + '.tmp'

    os.makedirs(output_dir, exist_ok=True)

    otto_output = getattr(__main__, 'OTTO_OUTPUT', {})

    try:
        with open(temp_file, 'w') as f:
            json.dump(otto_output, f, indent=2)

        os.rename(temp_file, output_file)
        return True

    except (IOError, OSError) as e:
        print(f'Error: Failed to serialize output to {output_file}: {e}', file=sys.stderr)
        if os.path.exists(temp_file):
            try:
                os.remove(temp_file)
            except OSError:
                pass
        return False


# Legacy helper functions for backward compatibility
def otto_get_input(key, default=None):
    """Safely get input value"""
    import __main__
    return getattr(__main__, 'OTTO_INPUT', {}).get(key, default)


def otto_set_output(key, value):
    """Set output value"""
    import __main__
    if not hasattr(__main__, 'OTTO_OUTPUT'):
        __main__.OTTO_OUTPUT = {}
    __main__.OTTO_OUTPUT[key] = value
`
