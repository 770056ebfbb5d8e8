package planner

import "time"

// TaskDeps holds per-task predecessor and successor lists.
type TaskDeps struct {
	Predecessors map[int][]int `json:"predecessors"`
	Successors   map[int][]int `json:"successors"`
}

// SchedulePlan is the tabular projection of one schedule, ready for
// display or export.
type SchedulePlan struct {
	ID            string         `json:"id"`
	Project       string         `json:"project"`
	CreatedAt     time.Time      `json:"created_at"`
	Start         time.Time      `json:"start"`
	Finish        time.Time      `json:"finish"`
	TotalTasks    int            `json:"total_tasks"`
	TotalWaves    int            `json:"total_waves"`
	TotalDuration float64        `json:"total_duration"`
	CriticalPath  []int          `json:"critical_path"`
	CriticalTies  bool           `json:"critical_ties"`
	Waves         []ScheduleWave `json:"waves"`
	Rows          []Row          `json:"rows"`
	Tasks         map[int]*Row   `json:"-"`
	Deps          TaskDeps       `json:"deps"`
	Summary       string         `json:"summary,omitempty"`
	Config        PlanConfig     `json:"config"`
}

// ScheduleWave is a group of tasks sharing an earliest start.
type ScheduleWave struct {
	Index      int       `json:"index"`
	Start      float64   `json:"start"`
	StartDate  time.Time `json:"start_date"`
	TaskIDs    []int     `json:"task_ids"`
	DependsOn  []int     `json:"depends_on"`
	IsCritical bool      `json:"is_critical"`
}

// Row is one task line of the schedule table. Offsets are in days.
type Row struct {
	TaskID       int       `json:"task_id"`
	Name         string    `json:"name"`
	Duration     float64   `json:"duration"`
	Predecessors []int     `json:"predecessors"`
	ES           float64   `json:"es"`
	EF           float64   `json:"ef"`
	LS           float64   `json:"ls"`
	LF           float64   `json:"lf"`
	EarlyStart   time.Time `json:"early_start"`
	EarlyFinish  time.Time `json:"early_finish"`
	LateStart    time.Time `json:"late_start"`
	LateFinish   time.Time `json:"late_finish"`
	Slack        float64   `json:"slack"`
	IsCritical   bool      `json:"is_critical"`
	Wave         int       `json:"wave"`
}

// PlanConfig holds presentation settings for a plan.
type PlanConfig struct {
	Project             string `json:"project"`
	SummaryTemplatePath string `json:"summary_template_path,omitempty"`
}
