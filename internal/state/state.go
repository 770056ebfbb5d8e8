package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/joshharrison/cpmsim/internal/planner"
	"github.com/joshharrison/cpmsim/internal/simulation"
)

const stateDir = ".cpmsim"
const stateFile = "state.json"
const planFile = "plan.json"
const historyDir = "history"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunState is the persistent state of the latest simulation run.
type RunState struct {
	RunID       string                 `json:"run_id"`
	Project     string                 `json:"project"`
	Source      string                 `json:"source"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
	Status      string                 `json:"status"`
	Config      simulation.Config      `json:"config"`
	Done        int                    `json:"done"`
	Summary     *simulation.Summary    `json:"summary,omitempty"`
	Criticality map[int]float64        `json:"criticality,omitempty"`
	TopPaths    []simulation.PathCount `json:"top_paths,omitempty"`
	Failures    []TrialFailure         `json:"failures,omitempty"`

	mu   sync.Mutex
	path string
}

// TrialFailure is the persisted form of a failed trial.
type TrialFailure struct {
	Trial int    `json:"trial"`
	Error string `json:"error"`
}

// New creates a new RunState and persists it.
func New(runID, project, source string, cfg simulation.Config) (*RunState, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &RunState{
		RunID:     runID,
		Project:   project,
		Source:    source,
		StartedAt: time.Now(),
		Status:    StatusRunning,
		Config:    cfg,
		path:      filepath.Join(stateDir, stateFile),
	}

	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads existing state from disk.
func Load() (*RunState, error) {
	return loadFrom(filepath.Join(stateDir, stateFile))
}

func loadFrom(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = path
	return &s, nil
}

// Exists checks if a state file exists.
func Exists() bool {
	_, err := os.Stat(filepath.Join(stateDir, stateFile))
	return err == nil
}

// Save persists the current state to disk.
func (s *RunState) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// SetStatus updates the overall run status and saves.
func (s *RunState) SetStatus(status string) error {
	s.mu.Lock()
	s.Status = status
	s.mu.Unlock()
	return s.Save()
}

// SetProgress records the number of finished trials and saves.
func (s *RunState) SetProgress(done int) error {
	s.mu.Lock()
	s.Done = done
	s.mu.Unlock()
	return s.Save()
}

// Finish stores the aggregates of a run and saves. topPaths limits how
// many distinct critical paths are kept.
func (s *RunState) Finish(status string, res *simulation.Result, topPaths int) error {
	now := time.Now()
	summary := res.Summary()

	s.mu.Lock()
	s.Status = status
	s.FinishedAt = &now
	s.Done = len(res.Trials) + len(res.Failures)
	s.Summary = &summary
	s.Criticality = res.CriticalityIndex()
	paths := res.PathFrequencies()
	if topPaths > 0 && len(paths) > topPaths {
		paths = paths[:topPaths]
	}
	s.TopPaths = paths
	s.Failures = nil
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, TrialFailure{Trial: f.Trial, Error: f.Err.Error()})
	}
	s.mu.Unlock()

	return s.Save()
}

// SavePlan writes the deterministic schedule next to the run state.
func SavePlan(plan *planner.SchedulePlan) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	return os.WriteFile(filepath.Join(stateDir, planFile), data, 0644)
}

// LoadPlan reads the saved schedule.
func LoadPlan() (*planner.SchedulePlan, error) {
	return loadPlanFrom(filepath.Join(stateDir, planFile))
}

func loadPlanFrom(path string) (*planner.SchedulePlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan planner.SchedulePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	plan.Tasks = make(map[int]*planner.Row, len(plan.Rows))
	for i := range plan.Rows {
		plan.Tasks[plan.Rows[i].TaskID] = &plan.Rows[i]
	}
	return &plan, nil
}

// PlanExists checks if a plan file exists.
func PlanExists() bool {
	_, err := os.Stat(filepath.Join(stateDir, planFile))
	return err == nil
}

// Archive copies the current state and plan into history/<run-id>/.
func Archive() error {
	s, err := Load()
	if err != nil {
		return err
	}
	if s.RunID == "" {
		return errors.New("archive: state has no run id")
	}

	dest := filepath.Join(stateDir, historyDir, s.RunID)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	for _, name := range []string{stateFile, planFile} {
		data, err := os.ReadFile(filepath.Join(stateDir, name))
		if errors.Is(err, os.ErrNotExist) && name == planFile {
			continue
		}
		if err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dest, name), data, 0644); err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
	}
	return nil
}

// LoadArchived reads an archived run and its plan, if one was saved.
func LoadArchived(runID string) (*RunState, *planner.SchedulePlan, error) {
	dir := filepath.Join(stateDir, historyDir, runID)
	s, err := loadFrom(filepath.Join(dir, stateFile))
	if err != nil {
		return nil, nil, err
	}
	plan, err := loadPlanFrom(filepath.Join(dir, planFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil, nil
		}
		return nil, nil, err
	}
	return s, plan, nil
}

// ListArchived returns archived run ids, oldest first.
func ListArchived() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(stateDir, historyDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Clean removes the state directory.
func Clean() error {
	return os.RemoveAll(stateDir)
}

// CleanCurrent removes the latest run state and plan, keeping history.
func CleanCurrent() error {
	for _, name := range []string{stateFile, planFile} {
		if err := os.Remove(filepath.Join(stateDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
