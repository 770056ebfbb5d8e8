package state

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/joshharrison/cpmsim/internal/planner"
	"github.com/joshharrison/cpmsim/internal/simulation"
)

func TestNewAndLoad(t *testing.T) {
	defer os.RemoveAll(stateDir)

	cfg := simulation.Config{Trials: 500, Mode: simulation.ModeMean, Workers: 2, Seed: 7}
	s, err := New("run-001", "relaunch", "relaunch.csv", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Status != StatusRunning {
		t.Errorf("expected status running, got %s", s.Status)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != "run-001" || loaded.Project != "relaunch" {
		t.Errorf("loaded state mismatch: %+v", loaded)
	}
	if loaded.Config.Mode != simulation.ModeMean || loaded.Config.Trials != 500 || loaded.Config.Seed != 7 {
		t.Errorf("loaded config mismatch: %+v", loaded.Config)
	}
}

func TestExists(t *testing.T) {
	defer os.RemoveAll(stateDir)

	if Exists() {
		t.Error("expected Exists()=false before creation")
	}

	New("test", "p", "p.csv", simulation.Config{})

	if !Exists() {
		t.Error("expected Exists()=true after creation")
	}

	Clean()

	if Exists() {
		t.Error("expected Exists()=false after Clean()")
	}
}

func TestProgressAndStatus(t *testing.T) {
	defer os.RemoveAll(stateDir)

	s, err := New("run-002", "p", "p.csv", simulation.Config{Trials: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.SetProgress(4)
	s.SetStatus(StatusCancelled)

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Done != 4 {
		t.Errorf("expected 4 done, got %d", loaded.Done)
	}
	if loaded.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", loaded.Status)
	}
}

func testResult() *simulation.Result {
	return &simulation.Result{
		Trials: []simulation.Trial{
			{Index: 0, TotalDuration: 7, CriticalPath: []int{1, 3, 4}},
			{Index: 1, TotalDuration: 9, CriticalPath: []int{1, 2, 4}},
			{Index: 2, TotalDuration: 8, CriticalPath: []int{1, 3, 4}},
		},
		Failures: []simulation.TrialError{{Trial: 3, Err: errors.New("negative duration")}},
	}
}

func TestFinish(t *testing.T) {
	defer os.RemoveAll(stateDir)

	s, err := New("run-003", "p", "p.csv", simulation.Config{Trials: 4, SkipCritical: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := testResult()
	res.Config = s.Config

	if err := s.Finish(StatusCompleted, res, 1); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.FinishedAt == nil {
		t.Fatal("expected finished time")
	}
	if loaded.Done != 4 {
		t.Errorf("expected 4 done, got %d", loaded.Done)
	}
	if loaded.Summary == nil || loaded.Summary.Mean != 8 || loaded.Summary.Failed != 1 {
		t.Errorf("unexpected summary %+v", loaded.Summary)
	}
	if len(loaded.TopPaths) != 1 || loaded.TopPaths[0].Count != 2 {
		t.Errorf("expected the most frequent path only, got %+v", loaded.TopPaths)
	}
	if len(loaded.Failures) != 1 || loaded.Failures[0].Trial != 3 {
		t.Errorf("unexpected failures %+v", loaded.Failures)
	}
}

func testPlan() *planner.SchedulePlan {
	return &planner.SchedulePlan{
		ID:         "cpm-2024-03-04-100000",
		Project:    "relaunch",
		CreatedAt:  time.Now(),
		TotalTasks: 2,
		TotalWaves: 2,
		Rows: []planner.Row{
			{TaskID: 1, Name: "Kickoff"},
			{TaskID: 2, Name: "Build", Duration: 3, Predecessors: []int{1}, ES: 0, EF: 3},
		},
	}
}

func TestSavePlanAndLoadPlan(t *testing.T) {
	defer os.RemoveAll(stateDir)

	if PlanExists() {
		t.Fatal("expected PlanExists()=false before SavePlan")
	}
	if err := SavePlan(testPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if !PlanExists() {
		t.Fatal("expected PlanExists()=true after SavePlan")
	}

	loaded, err := LoadPlan()
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if loaded.ID != "cpm-2024-03-04-100000" {
		t.Errorf("unexpected plan ID %s", loaded.ID)
	}
	if row := loaded.Tasks[2]; row == nil || row.Name != "Build" {
		t.Errorf("expected Tasks index to be rebuilt, got %+v", loaded.Tasks)
	}
}

func TestArchiveAndLoadArchived(t *testing.T) {
	defer os.RemoveAll(stateDir)

	s, err := New("run-004", "p", "p.csv", simulation.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := SavePlan(testPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	s.SetStatus(StatusCompleted)

	if err := Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	ids, err := ListArchived()
	if err != nil {
		t.Fatalf("ListArchived: %v", err)
	}
	if len(ids) != 1 || ids[0] != "run-004" {
		t.Errorf("expected [run-004], got %v", ids)
	}

	archived, plan, err := LoadArchived("run-004")
	if err != nil {
		t.Fatalf("LoadArchived: %v", err)
	}
	if archived.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", archived.Status)
	}
	if plan == nil || plan.Project != "relaunch" {
		t.Errorf("expected archived plan, got %+v", plan)
	}

	if _, _, err := LoadArchived("nope"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestArchive_WithoutPlan(t *testing.T) {
	defer os.RemoveAll(stateDir)

	if _, err := New("run-005", "p", "p.csv", simulation.Config{}); err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	_, plan, err := LoadArchived("run-005")
	if err != nil {
		t.Fatalf("LoadArchived: %v", err)
	}
	if plan != nil {
		t.Errorf("expected no plan, got %+v", plan)
	}
}

func TestCleanCurrent_KeepsHistory(t *testing.T) {
	defer os.RemoveAll(stateDir)

	if _, err := New("run-006", "p", "p.csv", simulation.Config{}); err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := SavePlan(testPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if err := Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if err := CleanCurrent(); err != nil {
		t.Fatalf("CleanCurrent: %v", err)
	}
	if Exists() || PlanExists() {
		t.Error("expected current state and plan to be removed")
	}
	if ids, _ := ListArchived(); len(ids) != 1 {
		t.Errorf("expected history to survive, got %v", ids)
	}

	// Nothing left to remove is not an error.
	if err := CleanCurrent(); err != nil {
		t.Errorf("second CleanCurrent: %v", err)
	}

	if err := Clean(); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if ids, _ := ListArchived(); len(ids) != 0 {
		t.Errorf("expected history removed by Clean, got %v", ids)
	}
}
