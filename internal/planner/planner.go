package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/joshharrison/cpmsim/internal/cpm"
	"github.com/joshharrison/cpmsim/internal/graph"
)

// Generate creates a SchedulePlan from a full CPM result.
func Generate(net *graph.Network, result *cpm.Result, config PlanConfig) (*SchedulePlan, error) {
	if !result.Backward {
		return nil, errors.New("plan needs late dates: schedule was computed forward-only")
	}
	if config.Project == "" {
		config.Project = "project"
	}

	now := time.Now()
	plan := &SchedulePlan{
		ID:            fmt.Sprintf("cpm-%s", now.Format("2006-01-02-150405")),
		Project:       config.Project,
		CreatedAt:     now,
		Start:         result.Start,
		Finish:        result.Date(result.TotalDuration),
		TotalTasks:    net.Len(),
		TotalWaves:    len(result.Waves),
		TotalDuration: result.TotalDuration,
		CriticalPath:  result.CriticalPath,
		CriticalTies:  result.CriticalTies,
		Tasks:         make(map[int]*Row, net.Len()),
		Deps: TaskDeps{
			Predecessors: make(map[int][]int, net.Len()),
			Successors:   make(map[int][]int, net.Len()),
		},
		Config: config,
	}

	for _, wave := range result.Waves {
		sw := ScheduleWave{
			Index:      wave.Index,
			Start:      wave.Start,
			StartDate:  result.Date(wave.Start),
			TaskIDs:    wave.TaskIDs,
			IsCritical: wave.IsCritical,
		}
		// Each wave depends on the previous one
		if wave.Index > 0 {
			sw.DependsOn = []int{wave.Index - 1}
		}
		plan.Waves = append(plan.Waves, sw)
	}

	for _, id := range result.TopoOrder {
		task, _ := net.Task(id)
		ts := result.Tasks[id]
		plan.Rows = append(plan.Rows, Row{
			TaskID:       id,
			Name:         task.Name,
			Duration:     ts.Duration,
			Predecessors: net.Parents(id),
			ES:           ts.ES,
			EF:           ts.EF,
			LS:           ts.LS,
			LF:           ts.LF,
			EarlyStart:   result.Date(ts.ES),
			EarlyFinish:  result.Date(ts.EF),
			LateStart:    result.Date(ts.LS),
			LateFinish:   result.Date(ts.LF),
			Slack:        ts.Slack,
			IsCritical:   ts.IsCritical,
			Wave:         ts.Wave,
		})
		plan.Deps.Predecessors[id] = net.Parents(id)
		plan.Deps.Successors[id] = net.Children(id)
	}
	for i := range plan.Rows {
		plan.Tasks[plan.Rows[i].TaskID] = &plan.Rows[i]
	}

	summary, err := RenderSummary(SummaryData{
		Project:       plan.Project,
		Start:         plan.Start.Format(time.DateOnly),
		Finish:        plan.Finish.Format(time.DateOnly),
		TotalTasks:    plan.TotalTasks,
		TotalWaves:    plan.TotalWaves,
		TotalDuration: plan.TotalDuration,
		CriticalPath:  plan.CriticalPath,
		CriticalTies:  plan.CriticalTies,
		CriticalNames: plan.names(plan.CriticalPath),
	}, config.SummaryTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}
	plan.Summary = summary

	return plan, nil
}

func (p *SchedulePlan) names(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if row, ok := p.Tasks[id]; ok && row.Name != "" {
			out[i] = row.Name
		} else {
			out[i] = fmt.Sprintf("#%d", id)
		}
	}
	return out
}
