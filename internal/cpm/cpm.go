package cpm

import (
	"fmt"
	"math"
	"sort"

	"github.com/joshharrison/cpmsim/internal/graph"
)

// Analyze runs the full critical path analysis with each task's fixed duration.
func Analyze(net *graph.Network) (*Result, error) {
	return Compute(net, net.FixedDurations(), Options{})
}

// Compute derives a fresh schedule for net under the given durations.
// The network must be built. Every task needs a finite, non-negative duration.
func Compute(net *graph.Network, durations graph.Durations, opts Options) (*Result, error) {
	if !net.Built() {
		return nil, fmt.Errorf("compute schedule: %w", graph.ErrNotBuilt)
	}

	order := net.Order()
	result := &Result{
		Start:     net.Start(),
		Tasks:     make(map[int]*TaskSchedule, len(order)),
		TopoOrder: order,
		Backward:  !opts.SkipBackward,
	}

	nan := math.NaN()
	for _, id := range order {
		d, ok := durations[id]
		if !ok {
			return nil, scheduleErr(ErrMissingDuration, "task %d", id)
		}
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, scheduleErr(ErrNegativeDuration, "task %d has duration %v", id, d)
		}
		result.Tasks[id] = &TaskSchedule{
			TaskID:   id,
			Duration: d,
			ES:       nan,
			EF:       nan,
			LS:       nan,
			LF:       nan,
			Slack:    nan,
		}
	}

	// Forward pass: ES = max(EF of all predecessors)
	for _, id := range order {
		ts := result.Tasks[id]
		es := 0.0
		for _, pred := range net.Parents(id) {
			if ef := result.Tasks[pred].EF; ef > es {
				es = ef
			}
		}
		ts.ES = es
		ts.EF = es + ts.Duration
	}
	source := result.Tasks[net.SourceID()]
	sink := result.Tasks[net.SinkID()]
	result.TotalDuration = sink.EF - source.ES

	if opts.SkipBackward {
		result.Waves = computeWaves(result)
		return result, nil
	}

	// Backward pass: LF = min(LS of all children), sink LF = sink EF
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Tasks[id]
		children := net.Children(id)
		if len(children) == 0 {
			ts.LF = ts.EF
		} else {
			lf := math.Inf(1)
			for _, c := range children {
				if ls := result.Tasks[c].LS; ls < lf {
					lf = ls
				}
			}
			ts.LF = lf
		}
		ts.LS = ts.LF - ts.Duration
	}

	tol := tolerance(result.TotalDuration)
	for _, id := range order {
		ts := result.Tasks[id]
		if math.IsNaN(ts.LS) || math.IsNaN(ts.LF) {
			return nil, scheduleErr(ErrInconsistentSchedule, "task %d was not scheduled", id)
		}
		slack := ts.LS - ts.ES
		switch {
		case math.Abs(slack) <= tol:
			slack = 0
		case slack < 0:
			return nil, scheduleErr(ErrInconsistentSchedule, "task %d has negative slack %v", id, slack)
		}
		ts.Slack = slack
		ts.IsCritical = slack == 0
		if ts.IsCritical {
			result.CriticalTasks = append(result.CriticalTasks, id)
		}
	}

	path, ties, err := criticalPath(net, result, tol)
	if err != nil {
		return nil, err
	}
	result.CriticalPath = path
	result.CriticalTies = ties
	result.Waves = computeWaves(result)

	return result, nil
}

// tolerance is the absolute slack below which a value counts as zero.
func tolerance(total float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(total))
}

// criticalPath walks from the source along tight zero-slack edges: a child
// continues the chain only if it starts exactly when the current task
// finishes. Ties go to the lowest id.
func criticalPath(net *graph.Network, result *Result, tol float64) ([]int, bool, error) {
	cur := net.SourceID()
	if !result.Tasks[cur].IsCritical {
		return nil, false, scheduleErr(ErrInconsistentSchedule, "source task %d is not critical", cur)
	}

	path := []int{cur}
	ties := false
	for cur != net.SinkID() {
		ef := result.Tasks[cur].EF
		var next []int
		for _, c := range net.Children(cur) {
			ts := result.Tasks[c]
			if ts.IsCritical && math.Abs(ts.ES-ef) <= tol {
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			return nil, false, scheduleErr(ErrInconsistentSchedule, "critical chain breaks after task %d", cur)
		}
		if len(next) > 1 {
			ties = true
		}
		cur = next[0]
		path = append(path, cur)
	}
	return path, ties, nil
}

// computeWaves groups tasks by their earliest start time.
func computeWaves(result *Result) []Wave {
	esGroups := make(map[float64][]int)
	for _, id := range result.TopoOrder {
		es := result.Tasks[id].ES
		esGroups[es] = append(esGroups[es], id)
	}

	esValues := make([]float64, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Float64s(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		taskIDs := esGroups[es]
		sort.Ints(taskIDs)

		hasCritical := false
		for _, id := range taskIDs {
			result.Tasks[id].Wave = i
			if result.Tasks[id].IsCritical {
				hasCritical = true
			}
		}

		// Critical tasks first within a wave
		sort.SliceStable(taskIDs, func(a, b int) bool {
			return result.Tasks[taskIDs[a]].IsCritical && !result.Tasks[taskIDs[b]].IsCritical
		})

		waves[i] = Wave{
			Index:      i,
			Start:      es,
			TaskIDs:    taskIDs,
			IsCritical: hasCritical,
		}
	}

	return waves
}
