package graph

import (
	"strings"
	"testing"

	"github.com/druarnfield/otto/internal/engine"
)

func def(name string, deps, before, after []string) *Def {
	return &Def{
		Task:   &engine.Task{Name: name, Action: "echo " + name},
		Deps:   deps,
		Before: before,
		After:  after,
	}
}

func TestBuild_LinearDeps(t *testing.T) {
	defs := map[string]*Def{
		"a": def("a", nil, nil, nil),
		"b": def("b", []string{"a"}, nil, nil),
		"c": def("c", []string{"b"}, nil, nil),
		"d": def("d", nil, nil, nil),
	}

	dag, err := Build(defs, []string{"c"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := dag.Tasks()["d"]; ok {
		t.Error("unrequested, unreferenced task d should not be pulled into the graph")
	}
	for _, want := range []string{"a", "b", "c"} {
		if _, ok := dag.Tasks()[want]; !ok {
			t.Errorf("task %q missing from built graph", want)
		}
	}

	order, err := dag.TopoOrder()
	if err != nil {
		t.Fatalf("TopoOrder: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("topo order %v violates a->b->c", order)
	}
}

func TestBuild_AfterPullsInNonRequested(t *testing.T) {
	defs := map[string]*Def{
		"build":  def("build", nil, nil, []string{"notify"}),
		"notify": def("notify", nil, nil, nil),
	}

	dag, err := Build(defs, []string{"build"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := dag.Tasks()["notify"]; !ok {
		t.Fatal("after-linked task should be pulled into the graph even though it wasn't requested")
	}
	preds := dag.Predecessors("notify")
	if len(preds) != 1 || preds[0] != "build" {
		t.Errorf("Predecessors(notify) = %v, want [build]", preds)
	}
}

func TestBuild_BeforeAddsReverseEdge(t *testing.T) {
	defs := map[string]*Def{
		"a": def("a", nil, []string{"a-before"}, nil),
		"a-before": def("a-before", nil, nil, nil),
	}
	dag, err := Build(defs, []string{"a"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	preds := dag.Predecessors("a")
	if len(preds) != 1 || preds[0] != "a-before" {
		t.Errorf("Predecessors(a) = %v, want [a-before]", preds)
	}
}

func TestBuild_UnknownTask(t *testing.T) {
	defs := map[string]*Def{
		"a": def("a", []string{"missing"}, nil, nil),
	}
	if _, err := Build(defs, []string{"a"}); err == nil {
		t.Error("expected an error for a reference to an unknown task")
	}
}

func TestBuild_CycleRejected(t *testing.T) {
	defs := map[string]*Def{
		"a": def("a", []string{"b"}, nil, nil),
		"b": def("b", []string{"a"}, nil, nil),
	}
	if _, err := Build(defs, []string{"a"}); err == nil {
		t.Error("expected a cycle error")
	}
}

func TestDOTAndASCII_Render(t *testing.T) {
	defs := map[string]*Def{
		"a": def("a", nil, nil, nil),
		"b": def("b", []string{"a"}, nil, nil),
	}
	dag, err := Build(defs, []string{"b"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dot := dag.DOT()
	if !strings.Contains(dot, "digraph otto_dag") {
		t.Error("DOT output missing digraph header")
	}
	if !strings.Contains(dot, "depends") {
		t.Error("DOT output missing dependency edge label")
	}

	ascii := dag.ASCII()
	if !strings.Contains(ascii, "b [inputs:0] [outputs:0]") {
		t.Errorf("ASCII output missing leaf task render: %s", ascii)
	}
}
