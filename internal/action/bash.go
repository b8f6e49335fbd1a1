package action

import (
	"fmt"
	"strings"

	"github.com/druarnfield/otto/internal/engine"
)

func bashPrologue(t *engine.Task, predecessors []string) string {
	var input strings.Builder
	if len(predecessors) > 0 {
		input.WriteString("# Input Loading\n")
		input.WriteString(strings.Repeat("#", 80) + "\n")
		for _, dep := range predecessors {
			fmt.Fprintf(&input, "otto_deserialize_input %q\n", dep)
		}
	}

	var params strings.Builder
	if section := paramSection(t, false); section != "" {
		params.WriteString("# Parameter Assignments\n")
		params.WriteString(strings.Repeat("#", 80) + "\n")
		params.WriteString(section)
	}

	var env strings.Builder
	if section := envSection(t); section != "" {
		env.WriteString("# Environment Variables\n")
		env.WriteString(strings.Repeat("#", 80) + "\n")
		env.WriteString(section)
	}

	return fmt.Sprintf(`# Otto-generated bash prologue
set -euo pipefail

declare -A OTTO_INPUT
declare -A OTTO_OUTPUT

# Set Otto environment variables
export OTTO_TASK_DIR="$(dirname "$0")"

# Source Otto builtins
source "$(dirname "$0")/builtins.sh"

%s
%s
%s`, env.String(), input.String(), params.String())
}

func bashEpilogue(taskName string) string {
	return fmt.Sprintf(`
# Output Serialization
################################################################################
# Serialize OTTO_OUTPUT to outputs/%s.output.json using builtins
otto_serialize_output %q
`, taskName, taskName)
}

// bashBuiltins is otto-rs's builtins.sh verbatim — the jq-based
// OTTO_INPUT/OTTO_OUTPUT (de)serialization contract is part of the
// wire format scripts are written against, so the function names and
// behavior are not otto's to redesign.
const bashBuiltins = `#!/bin/bash
# Otto Bash Builtins
# Functions to handle input/output file serialization

# Function to deserialize inputs/<task-name>.input.json -> OTTO_INPUT
otto_deserialize_input() {
    local task_name="$1"
    local input_file="$OTTO_TASK_DIR/inputs/${task_name}.input.json"

    if [ -f "$input_file" ]; then
        if ! hash jq >/dev/null 2>&1; then
            echo "Error: jq is required for input deserialization but not found in PATH" >&2
            return 1
        fi

        while IFS= read -r key; do
            if [ "$key" != "null" ] && [ "$key" != "" ]; then
                value=$(jq -r --arg k "$key" '.[$k] // empty' "$input_file")
                if [ "$value" != "" ] && [ "$value" != "null" ]; then
                    OTTO_INPUT["${task_name}.${key}"]="$value"
                fi
            fi
        done < <(jq -r 'keys[]' "$input_file" 2>/dev/null)
    fi
}

# Function to serialize OTTO_OUTPUT -> outputs/<task-name>.output.json
otto_serialize_output() {
    local task_name="$1"
    local output_dir="$OTTO_TASK_DIR/outputs"
    local output_file="$output_dir/${task_name}.output.json"
    local temp_file="${output_file}.tmp"

    mkdir -p "$output_dir"

    local output_count=0
    for key in "${!OTTO_OUTPUT[@]}"; do
        output_count=$((output_count + 1))
        break
    done

    if [ "$output_count" -eq 0 ]; then
        echo '{}' > "$temp_file"
    else
        if ! hash jq >/dev/null 2>&1; then
            echo "Error: jq is required for output serialization but not found in PATH" >&2
            return 1
        fi

        local args=()
        local obj_parts=()
        local i=0

        for key in "${!OTTO_OUTPUT[@]}"; do
            args+=(--arg "key_$i" "$key")
            args+=(--arg "val_$i" "${OTTO_OUTPUT[$key]}")
            obj_parts+=("\$key_$i: \$val_$i")
            i=$((i + 1))
        done

        local obj_str
        obj_str=$(IFS=', '; echo "${obj_parts[*]}")
        jq -n "${args[@]}" "{$obj_str}" > "$temp_file"
    fi

    # Atomic move — a reader polling outputs/ never sees a partial file.
    mv "$temp_file" "$output_file"
}

# Legacy helper functions for backward compatibility
otto_get_input() {
    local key="$1"
    echo "${OTTO_INPUT[$key]:-}"
}

otto_set_output() {
    local key="$1"
    local value="$2"
    OTTO_OUTPUT["$key"]="$value"
}
`
