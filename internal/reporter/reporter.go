package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joshharrison/cpmsim/internal/cpm"
	"github.com/joshharrison/cpmsim/internal/planner"
	"github.com/joshharrison/cpmsim/internal/simulation"
	"github.com/joshharrison/cpmsim/internal/state"
	"github.com/joshharrison/cpmsim/internal/ui"
)

const dateFmt = "2006-01-02"

// Reporter renders a schedule plan and, optionally, simulation results.
type Reporter struct {
	Plan *planner.SchedulePlan
	Sim  *simulation.Result
}

// New creates a new Reporter.
func New(plan *planner.SchedulePlan) *Reporter {
	return &Reporter{Plan: plan}
}

// WithSimulation attaches Monte Carlo results.
func (r *Reporter) WithSimulation(res *simulation.Result) *Reporter {
	r.Sim = res
	return r
}

// PrintSchedule writes a terminal-friendly schedule grouped by wave.
func (r *Reporter) PrintSchedule(w io.Writer) {
	p := r.Plan
	fmt.Fprintf(w, "%s %s · %d tasks, %d waves, %s\n",
		ui.BoldCyan("📅 Schedule"),
		ui.Bold(p.Project),
		p.TotalTasks, p.TotalWaves,
		ui.Bold(ui.Days(p.TotalDuration)))
	fmt.Fprintf(w, "   %s %s → %s\n\n", ui.Dim("from"), p.Start.Format(dateFmt), p.Finish.Format(dateFmt))

	for _, wave := range p.Waves {
		label := ui.BoldWhite("WAVE")
		if wave.IsCritical {
			label = ui.BoldYellow("WAVE")
		}
		fmt.Fprintf(w, "  🌊 %s %d %s\n", label, wave.Index+1,
			ui.Dim(fmt.Sprintf("(day %s, %s)", strconv.FormatFloat(wave.Start, 'f', -1, 64), wave.StartDate.Format(dateFmt))))
		for _, id := range wave.TaskIDs {
			if row, ok := p.Tasks[id]; ok {
				r.printRow(w, row)
			}
		}
		fmt.Fprintln(w)
	}

	if len(p.CriticalPath) > 0 {
		fmt.Fprintf(w, "Critical:  %s\n", ui.BoldYellow("⚡ "+r.pathNames(p.CriticalPath)))
		if p.CriticalTies {
			fmt.Fprintf(w, "           %s\n", ui.Dim("(parallel critical chains exist; lowest ids shown)"))
		}
	}
}

func (r *Reporter) printRow(w io.Writer, row *planner.Row) {
	name := truncate(row.Name, 32)
	fmt.Fprintf(w, "    %s %s %-32s %6s  %s → %s  slack %s\n",
		ui.CriticalMark(row.IsCritical),
		ui.TaskPrefix(row.TaskID),
		name,
		ui.Days(row.Duration),
		row.EarlyStart.Format(dateFmt),
		row.EarlyFinish.Format(dateFmt),
		ui.SlackLabel(row.Slack))
}

// PrintTasks writes the ingested task table: id, name, duration and
// predecessors, in topological order.
func (r *Reporter) PrintTasks(w io.Writer) {
	fmt.Fprintf(w, "%-6s %-32s %8s  %s\n", ui.Bold("ID"), ui.Bold("Task"), ui.Bold("Duration"), ui.Bold("Predecessors"))
	for _, row := range r.Plan.Rows {
		fmt.Fprintf(w, "%-6d %-32s %8s  %s\n", row.TaskID, row.Name, ui.Days(row.Duration), joinInts(row.Predecessors, ","))
	}
}

// PrintSimulation writes the Monte Carlo summary, a text histogram, the
// criticality index and the most frequent critical paths.
func (r *Reporter) PrintSimulation(w io.Writer, bins, topPaths int) {
	res := r.Sim
	if res == nil {
		return
	}
	s := res.Summary()

	fmt.Fprintf(w, "\n%s %s\n", "🎲", ui.BoldCyan("Monte Carlo Summary"))
	fmt.Fprintf(w, "%s\n", ui.Cyan("══════════════════════════"))
	fmt.Fprintf(w, "Trials:    %d completed", s.Trials)
	if s.Failed > 0 {
		fmt.Fprintf(w, ", %s", ui.Red(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Fprintf(w, "  %s\n", ui.Dim(fmt.Sprintf("(mode %s, seed %d)", res.Config.Mode, res.Config.Seed)))
	if s.Trials == 0 {
		r.printFailures(w)
		return
	}
	fmt.Fprintf(w, "Duration:  mean %s  sd %s  min %s  max %s\n",
		ui.Bold(fmtDays(s.Mean)), fmtDays(s.StdDev), fmtDays(s.Min), fmtDays(s.Max))
	fmt.Fprintf(w, "Finish:    P50 %s  P80 %s  P90 %s  P95 %s\n\n",
		r.dateAt(s.P50), r.dateAt(s.P80), ui.Bold(r.dateAt(s.P90)), r.dateAt(s.P95))

	if hist := res.Histogram(bins); len(hist) > 0 {
		peak := 0
		for _, b := range hist {
			peak = max(peak, b.Count)
		}
		for _, b := range hist {
			fmt.Fprintf(w, "  %8s – %-8s %6d %s\n", fmtDays(b.Lo), fmtDays(b.Hi), b.Count, ui.Bar(b.Count, peak, 40))
		}
		fmt.Fprintln(w)
	}

	if crit := res.CriticalityIndex(); len(crit) > 0 {
		fmt.Fprintf(w, "%s\n", ui.Bold("Criticality index"))
		ids := make([]int, 0, len(crit))
		for id := range crit {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if crit[ids[i]] != crit[ids[j]] {
				return crit[ids[i]] > crit[ids[j]]
			}
			return ids[i] < ids[j]
		})
		for _, id := range ids {
			fmt.Fprintf(w, "  %s %s %s\n", ui.Percent(crit[id]), ui.TaskPrefix(id), r.name(id))
		}
		fmt.Fprintln(w)
	}

	if paths := res.PathFrequencies(); len(paths) > 0 {
		fmt.Fprintf(w, "%s\n", ui.Bold("Critical paths"))
		for i, pc := range paths {
			if topPaths > 0 && i >= topPaths {
				fmt.Fprintf(w, "  %s\n", ui.Dim(fmt.Sprintf("… %d more", len(paths)-topPaths)))
				break
			}
			fmt.Fprintf(w, "  %s %s\n", ui.Percent(pc.Fraction), r.pathNames(pc.Path))
		}
	}
	r.printFailures(w)
}

func (r *Reporter) printFailures(w io.Writer) {
	if len(r.Sim.Failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", ui.BoldRed("Failed trials:"))
	for i, f := range r.Sim.Failures {
		if i == 10 {
			fmt.Fprintf(w, "  %s\n", ui.Dim(fmt.Sprintf("… %d more", len(r.Sim.Failures)-10)))
			break
		}
		fmt.Fprintf(w, "  %s trial %d: %v\n", ui.Red("✗"), f.Trial, f.Err)
	}
}

func (r *Reporter) dateAt(offset float64) string {
	start := r.Sim.Start
	if r.Plan != nil {
		start = r.Plan.Start
	}
	return cpm.AddDays(start, offset).Format(dateFmt)
}

func (r *Reporter) name(id int) string {
	if r.Plan != nil {
		if row, ok := r.Plan.Tasks[id]; ok && row.Name != "" {
			return row.Name
		}
	}
	return "#" + strconv.Itoa(id)
}

func (r *Reporter) pathNames(path []int) string {
	names := make([]string, len(path))
	for i, id := range path {
		names[i] = r.name(id)
	}
	return strings.Join(names, " → ")
}

// WriteCSV exports the schedule table with offsets and calendar dates.
func (r *Reporter) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"TaskID", "Task", "Duration", "Predecessors",
		"ES", "EF", "LS", "LF",
		"EarlyStart", "EarlyFinish", "LateStart", "LateFinish",
		"Slack", "Critical", "Wave"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range r.Plan.Rows {
		rec := []string{
			strconv.Itoa(row.TaskID),
			row.Name,
			fmtNum(row.Duration),
			joinInts(row.Predecessors, ","),
			fmtNum(row.ES), fmtNum(row.EF), fmtNum(row.LS), fmtNum(row.LF),
			row.EarlyStart.Format(dateFmt), row.EarlyFinish.Format(dateFmt),
			row.LateStart.Format(dateFmt), row.LateFinish.Format(dateFmt),
			fmtNum(row.Slack),
			strconv.FormatBool(row.IsCritical),
			strconv.Itoa(row.Wave),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON returns the machine-readable schedule, plus the simulation
// aggregates when attached.
func (r *Reporter) JSON() ([]byte, error) {
	type simOutput struct {
		Mode        simulation.Mode        `json:"mode"`
		Seed        uint64                 `json:"seed"`
		Summary     simulation.Summary     `json:"summary"`
		Totals      []float64              `json:"totals"`
		Criticality map[int]float64        `json:"criticality,omitempty"`
		Paths       []simulation.PathCount `json:"paths,omitempty"`
		Histogram   []simulation.Bin       `json:"histogram,omitempty"`
		Failures    []state.TrialFailure   `json:"failures,omitempty"`
	}
	type output struct {
		Schedule   *planner.SchedulePlan `json:"schedule,omitempty"`
		Simulation *simOutput            `json:"simulation,omitempty"`
	}

	o := output{Schedule: r.Plan}
	if r.Sim != nil {
		so := &simOutput{
			Mode:        r.Sim.Config.Mode,
			Seed:        r.Sim.Config.Seed,
			Summary:     r.Sim.Summary(),
			Totals:      r.Sim.TotalDurations(),
			Criticality: r.Sim.CriticalityIndex(),
			Paths:       r.Sim.PathFrequencies(),
			Histogram:   r.Sim.Histogram(20),
		}
		for _, f := range r.Sim.Failures {
			so.Failures = append(so.Failures, state.TrialFailure{Trial: f.Trial, Error: f.Err.Error()})
		}
		o.Simulation = so
	}
	return json.MarshalIndent(o, "", "  ")
}

// PrintStatus writes the persisted state of the latest simulation run.
func PrintStatus(w io.Writer, st *state.RunState) {
	fmt.Fprintf(w, "%s %s %s %s\n",
		ui.StatusIcon(st.Status),
		ui.BoldCyan("Run "+st.RunID),
		ui.Bold(st.Project),
		ui.Dim("("+st.Source+")"))
	fmt.Fprintf(w, "Status:    %s\n", st.Status)
	fmt.Fprintf(w, "Started:   %s\n", st.StartedAt.Format(time.DateTime))
	if st.FinishedAt != nil {
		fmt.Fprintf(w, "Elapsed:   %s\n", st.FinishedAt.Sub(st.StartedAt).Truncate(time.Millisecond))
	}
	fmt.Fprintf(w, "Trials:    %d/%d  %s\n", st.Done, st.Config.Trials,
		ui.Dim(fmt.Sprintf("(mode %s, seed %d, %d workers)", st.Config.Mode, st.Config.Seed, st.Config.Workers)))

	if s := st.Summary; s != nil && s.Trials > 0 {
		fmt.Fprintf(w, "Duration:  mean %s  P50 %s  P80 %s  P95 %s\n",
			fmtDays(s.Mean), fmtDays(s.P50), fmtDays(s.P80), fmtDays(s.P95))
	}
	for _, pc := range st.TopPaths {
		fmt.Fprintf(w, "  %s %s\n", ui.Percent(pc.Fraction), joinInts(pc.Path, " → "))
	}
	if n := len(st.Failures); n > 0 {
		fmt.Fprintf(w, "%s\n", ui.Red(fmt.Sprintf("%d trials failed", n)))
	}
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func fmtDays(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "d"
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinInts(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, sep)
}
