package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/joshharrison/cpmsim/internal/simulation"
	"github.com/joshharrison/cpmsim/internal/state"
	"github.com/joshharrison/cpmsim/internal/viewer"
)

const relaunchCSV = `TaskID,Task,Duration,Predecessors
1,Kickoff,0,
2,Requirements,3,1
3,Design,5,1
4,Build,7,"2,3"
5,Test,4,4
6,Docs,2,3
7,Release,1,"5, 6"
`

// inTempDir runs the test from an empty directory so .cpmsim state stays
// isolated, and returns the path of a project file written there.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	path := filepath.Join(dir, "relaunch.csv")
	if err := os.WriteFile(path, []byte(relaunchCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRunSimulation_RecordsEffectiveConfig(t *testing.T) {
	path := inTempDir(t)
	ctx := context.Background()

	s, err := buildSchedule(ctx, path)
	if err != nil {
		t.Fatalf("build schedule: %v", err)
	}
	res, st, err := runSimulation(ctx, s, path, simulation.Config{Seed: 1}, 3)
	if err != nil {
		t.Fatalf("run simulation: %v", err)
	}
	if len(res.Trials) != simulation.DefaultTrials {
		t.Errorf("expected %d trials, got %d", simulation.DefaultTrials, len(res.Trials))
	}

	loaded, err := state.Load()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	for _, got := range []*state.RunState{st, loaded} {
		if got.Config.Trials != simulation.DefaultTrials {
			t.Errorf("expected stored trials %d, got %d", simulation.DefaultTrials, got.Config.Trials)
		}
		if got.Config.Workers != runtime.GOMAXPROCS(0) {
			t.Errorf("expected stored workers %d, got %d", runtime.GOMAXPROCS(0), got.Config.Workers)
		}
	}
	if loaded.Done != simulation.DefaultTrials || loaded.Status != state.StatusCompleted {
		t.Errorf("expected completed %d/%d, got %s %d", simulation.DefaultTrials, simulation.DefaultTrials, loaded.Status, loaded.Done)
	}
	if !state.PlanExists() {
		t.Error("expected the schedule to be saved with the run")
	}
}

func TestSimulateAndStatus(t *testing.T) {
	path := inTempDir(t)

	out, err := execute(t, "simulate", path, "--trials", "0", "--seed", "5")
	if err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}
	for _, want := range []string{"C  P  M  S  I  M", "Monte Carlo Summary", "1000 completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected simulate output to contain %q, got:\n%s", want, out)
		}
	}

	out, err = execute(t, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1000/1000") || strings.Contains(out, " 0 workers") {
		t.Errorf("expected effective trial and worker counts, got:\n%s", out)
	}
	if strings.Contains(out, "WAVE") {
		t.Error("plain status should not print the schedule")
	}

	out, err = execute(t, "status", "--plan")
	if err != nil {
		t.Fatalf("status --plan: %v\n%s", err, out)
	}
	for _, want := range []string{"1000/1000", "WAVE 1", "Release"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected status --plan output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSimulate_JSONHasNoBanner(t *testing.T) {
	path := inTempDir(t)

	out, err := execute(t, "--json", "simulate", path, "--trials", "10", "--seed", "2")
	if err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("expected pure JSON output, got %v:\n%s", err, out)
	}
	if _, ok := doc["simulation"]; !ok {
		t.Errorf("expected simulation section, got keys %v", doc)
	}
}

func TestStatusPlan_JSON(t *testing.T) {
	path := inTempDir(t)
	if out, err := execute(t, "simulate", path, "--trials", "20", "--seed", "3"); err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}

	out, err := execute(t, "--json", "status", "--plan")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	var doc struct {
		Run struct {
			Done int `json:"done"`
		} `json:"run"`
		Plan struct {
			Project      string `json:"project"`
			CriticalPath []int  `json:"critical_path"`
		} `json:"plan"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if doc.Run.Done != 20 {
		t.Errorf("expected 20 done, got %d", doc.Run.Done)
	}
	if doc.Plan.Project != "relaunch" || len(doc.Plan.CriticalPath) == 0 {
		t.Errorf("unexpected plan %+v", doc.Plan)
	}
}

func TestStatusPlan_MissingPlan(t *testing.T) {
	inTempDir(t)
	if _, err := state.New("sim-x", "p", "p.csv", simulation.Config{Trials: 1}); err != nil {
		t.Fatalf("state: %v", err)
	}

	if _, err := execute(t, "status", "--plan"); err == nil {
		t.Error("expected error when no schedule was saved")
	}
	if _, err := execute(t, "status"); err != nil {
		t.Errorf("plain status should still work: %v", err)
	}
}

func TestCleanCmd(t *testing.T) {
	path := inTempDir(t)
	if out, err := execute(t, "simulate", path, "--trials", "5", "--seed", "4"); err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}

	out, err := execute(t, "clean")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !strings.Contains(out, "removed current run") {
		t.Errorf("unexpected output %q", out)
	}
	if state.Exists() || state.PlanExists() {
		t.Error("expected current state and plan to be removed")
	}
	if ids, _ := state.ListArchived(); len(ids) != 1 {
		t.Errorf("expected archived run to be kept, got %v", ids)
	}

	if _, err := execute(t, "clean", "--all"); err != nil {
		t.Fatalf("clean --all: %v", err)
	}
	if ids, _ := state.ListArchived(); len(ids) != 0 {
		t.Errorf("expected history removed, got %v", ids)
	}
}

func TestServeCmd_Push(t *testing.T) {
	path := inTempDir(t)
	ts := httptest.NewServer(viewer.NewServer().Handler())
	defer ts.Close()

	out, err := execute(t, "serve", path, "--push", ts.URL)
	if err != nil {
		t.Fatalf("serve --push: %v\n%s", err, out)
	}
	if !strings.Contains(out, "pushed") {
		t.Errorf("unexpected output %q", out)
	}

	resp, err := http.Get(ts.URL + "/graph")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var g viewer.Graph
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 7 || g.Metadata.Project != "relaunch" {
		t.Errorf("unexpected graph: %d nodes, project %q", len(g.Nodes), g.Metadata.Project)
	}
}
