package cpm

import (
	"math"
	"slices"
	"time"
)

// Result holds the complete critical path analysis for one duration
// assignment. Offsets are in days from Start.
type Result struct {
	Start         time.Time
	Tasks         map[int]*TaskSchedule
	TopoOrder     []int
	TotalDuration float64
	CriticalTasks []int // every zero-slack task, topological order
	CriticalPath  []int // one connected zero-slack chain, source to sink
	CriticalTies  bool  // more than one critical chain was available
	Waves         []Wave
	Backward      bool // false when only the forward pass ran
}

// TaskSchedule holds the scheduling info for a single task. Unset values are NaN.
type TaskSchedule struct {
	TaskID     int
	Duration   float64
	ES, EF     float64 // earliest start/finish
	LS, LF     float64 // latest start/finish
	Slack      float64
	IsCritical bool
	Wave       int
}

// Wave is a group of tasks sharing the same earliest start.
type Wave struct {
	Index      int
	Start      float64
	TaskIDs    []int
	IsCritical bool // true if wave contains critical tasks
}

// Options controls which passes Compute runs.
type Options struct {
	SkipBackward bool // forward pass only; LS, LF, slack and critical data stay unset
}

// Date converts an offset in days into a calendar time.
func (r *Result) Date(offset float64) time.Time {
	return AddDays(r.Start, offset)
}

// maxDayOffset bounds offsets that AddDays projects; beyond it the year
// leaves the range time.Time can represent.
const maxDayOffset = 1 << 40

// AddDays projects an offset in days onto the calendar. Whole days are added
// with AddDate and only the fractional part as a Duration, so long projects
// cannot overflow time.Duration. NaN and out-of-range offsets give the zero
// time.
func AddDays(start time.Time, days float64) time.Time {
	if math.IsNaN(days) || math.Abs(days) > maxDayOffset {
		return time.Time{}
	}
	whole := math.Trunc(days)
	frac := days - whole
	return start.AddDate(0, 0, int(whole)).Add(time.Duration(frac * float64(24*time.Hour)))
}

// StartDate returns the earliest start date of a task.
func (r *Result) StartDate(id int) (time.Time, bool) {
	ts, ok := r.Tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return r.Date(ts.ES), true
}

// FinishDate returns the earliest finish date of a task.
func (r *Result) FinishDate(id int) (time.Time, bool) {
	ts, ok := r.Tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return r.Date(ts.EF), true
}

// Equal reports whether two results describe the same schedule.
func (r *Result) Equal(o *Result) bool {
	if r == nil || o == nil {
		return r == o
	}
	if !r.Start.Equal(o.Start) || !sameFloat(r.TotalDuration, o.TotalDuration) ||
		r.CriticalTies != o.CriticalTies || r.Backward != o.Backward ||
		!slices.Equal(r.TopoOrder, o.TopoOrder) ||
		!slices.Equal(r.CriticalPath, o.CriticalPath) ||
		!slices.Equal(r.CriticalTasks, o.CriticalTasks) ||
		len(r.Tasks) != len(o.Tasks) {
		return false
	}
	for id, a := range r.Tasks {
		b, ok := o.Tasks[id]
		if !ok || !a.equal(b) {
			return false
		}
	}
	return true
}

func (ts *TaskSchedule) equal(o *TaskSchedule) bool {
	return ts.TaskID == o.TaskID && ts.IsCritical == o.IsCritical && ts.Wave == o.Wave &&
		sameFloat(ts.Duration, o.Duration) &&
		sameFloat(ts.ES, o.ES) && sameFloat(ts.EF, o.EF) &&
		sameFloat(ts.LS, o.LS) && sameFloat(ts.LF, o.LF) &&
		sameFloat(ts.Slack, o.Slack)
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
