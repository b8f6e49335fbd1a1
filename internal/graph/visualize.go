package graph

import (
	"fmt"
	"sort"
	"strings"
)

// DOT renders the DAG as Graphviz dot source, trimmed from otto-rs's
// DagVisualizer.generate_dot down to the task-dependency edges (no
// file-dependency satellite nodes, no image rendering — `dot -Tsvg`
// is a shell-out the caller can do itself if graphviz is installed).
func (d *DAG) DOT() string {
	var b strings.Builder
	b.WriteString("digraph otto_dag {\n")
	b.WriteString("  label=\"otto task graph\";\n")
	b.WriteString("  labelloc=\"t\";\n")
	b.WriteString("  rankdir=\"TB\";\n")
	b.WriteString("  node [shape=\"box\", style=\"rounded,filled\", fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=\"10\"];\n\n")

	names := make([]string, 0, len(d.tasks))
	for name := range d.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make(map[string]string, len(names))
	for i, name := range names {
		ids[name] = fmt.Sprintf("task_%d", i)
	}

	for _, name := range names {
		t := d.tasks[name]
		color := "lightgray"
		if len(t.FileDeps) > 0 || len(t.OutputDeps) > 0 {
			color = "lightblue"
		}
		fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q];\n", ids[name], name, color)
	}
	b.WriteString("\n")

	for _, name := range names {
		for _, dep := range d.tasks[name].TaskDeps {
			fmt.Fprintf(&b, "  %s -> %s [label=\"depends\"];\n", ids[dep], ids[name])
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// ASCII renders the DAG as an indented tree rooted at each leaf task
// (a task nothing else depends on — the top-level targets a user
// would actually request), following otto-rs's generate_ascii shape.
func (d *DAG) ASCII() string {
	var b strings.Builder
	b.WriteString("otto task graph\n")

	dependedOn := make(map[string]bool)
	for _, t := range d.tasks {
		for _, dep := range t.TaskDeps {
			dependedOn[dep] = true
		}
	}

	var leaves []string
	for name := range d.tasks {
		if !dependedOn[name] {
			leaves = append(leaves, name)
		}
	}
	sort.Strings(leaves)

	if len(leaves) == 0 {
		b.WriteString("(no leaf tasks — every task is a dependency of another; possible cycle)\n")
		return b.String()
	}

	for i, name := range leaves {
		renderSubtree(&b, d, name, "", i == len(leaves)-1, make(map[string]bool))
	}
	return b.String()
}

func renderSubtree(b *strings.Builder, d *DAG, name, prefix string, last bool, visiting map[string]bool) {
	connector := "├─ "
	nextPrefix := prefix + "│  "
	if last {
		connector = "└─ "
		nextPrefix = prefix + "   "
	}

	t := d.tasks[name]
	fmt.Fprintf(b, "%s%s%s [inputs:%d] [outputs:%d]\n", prefix, connector, name, len(t.FileDeps), len(t.OutputDeps))

	if visiting[name] {
		fmt.Fprintf(b, "%s  (cycle back to %s)\n", nextPrefix, name)
		return
	}
	visiting[name] = true
	defer delete(visiting, name)

	deps := append([]string(nil), t.TaskDeps...)
	sort.Strings(deps)
	for i, dep := range deps {
		renderSubtree(b, d, dep, nextPrefix, i == len(deps)-1, visiting)
	}
}
