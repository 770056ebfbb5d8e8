package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/joshharrison/cpmsim/internal/cpm"
	"github.com/joshharrison/cpmsim/internal/graph"
	"github.com/joshharrison/cpmsim/internal/planner"
	"github.com/joshharrison/cpmsim/internal/ui"
)

func init() {
	ui.SetColor(false)
}

func testPlan(t *testing.T) *planner.SchedulePlan {
	t.Helper()
	n := graph.NewNetwork(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	for _, tk := range []graph.Task{
		{ID: 1, Name: "Kickoff"},
		{ID: 2, Name: `Write "specs"`, Duration: 3, Predecessors: []int{1}},
		{ID: 3, Name: "Design", Duration: 5, Predecessors: []int{1}},
		{ID: 4, Name: "Build", Duration: 2, Predecessors: []int{2, 3}},
	} {
		if err := n.AddTask(tk); err != nil {
			t.Fatalf("add task: %v", err)
		}
	}
	if err := n.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	res, err := cpm.Analyze(n)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	plan, err := planner.Generate(n, res, planner.PlanConfig{Project: "viz"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return plan
}

func TestPrintDOT(t *testing.T) {
	var buf bytes.Buffer
	printDOT(&buf, testPlan(t))
	out := buf.String()

	for _, want := range []string{
		"digraph cpmsim {",
		`3 [label="3\nDesign\n5d (slack 0)", style="rounded,bold", color=red];`,
		`2 [label="2\nWrite \"specs\"\n3d (slack 2)"];`,
		"1 -> 3 [color=red, penwidth=2];",
		"3 -> 4 [color=red, penwidth=2];",
		"1 -> 2;",
		"2 -> 4;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected DOT to contain %q, got:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Error("expected closing brace")
	}
}

func TestPrintASCIIDAG(t *testing.T) {
	var buf bytes.Buffer
	printASCIIDAG(&buf, testPlan(t))
	out := buf.String()

	for _, want := range []string{
		"Wave 1, day 0d",
		"Wave 2, day 5d",
		"[#3] Design 5d",
		"└══→ [#4]",
		"└──→ [#4]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestJoinIDs(t *testing.T) {
	if got := joinIDs([]int{1, 3, 4}, ","); got != "1,3,4" {
		t.Errorf("expected 1,3,4, got %q", got)
	}
	if got := joinIDs(nil, ","); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
