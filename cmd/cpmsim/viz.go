package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/joshharrison/cpmsim/internal/planner"
	"github.com/joshharrison/cpmsim/internal/ui"
)

func printASCIIDAG(w io.Writer, plan *planner.SchedulePlan) {
	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Task Network"))
	fmt.Fprintln(w, ui.Cyan("════════════"))
	fmt.Fprintln(w)

	for _, wave := range plan.Waves {
		fmt.Fprintf(w, "%s 🌊 Wave %d, day %s %s\n", ui.Cyan("──"), wave.Index+1, ui.Days(wave.Start), ui.Cyan("────────────────────────"))
		for _, id := range wave.TaskIDs {
			row := plan.Tasks[id]
			if row == nil {
				continue
			}
			fmt.Fprintf(w, "  %s %s %s %s\n", ui.CriticalMark(row.IsCritical), ui.TaskPrefix(id), row.Name, ui.Dim(ui.Days(row.Duration)))

			for _, succ := range plan.Deps.Successors[id] {
				arrow := ui.Dim("└──→")
				if isCriticalEdge(plan, id, succ) {
					arrow = ui.BoldYellow("└══→")
				}
				fmt.Fprintf(w, "      %s %s\n", arrow, ui.TaskPrefix(succ))
			}
		}
		fmt.Fprintln(w)
	}
}

func printDOT(w io.Writer, plan *planner.SchedulePlan) {
	fmt.Fprintln(w, "digraph cpmsim {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")
	fmt.Fprintln(w)

	for _, row := range plan.Rows {
		label := fmt.Sprintf("%d\\n%s\\n%gd (slack %g)", row.TaskID, escapeDOT(row.Name), row.Duration, row.Slack)
		attrs := fmt.Sprintf(`label="%s"`, label)
		if row.IsCritical {
			attrs += `, style="rounded,bold", color=red`
		}
		fmt.Fprintf(w, "  %d [%s];\n", row.TaskID, attrs)
	}

	fmt.Fprintln(w)

	for _, row := range plan.Rows {
		for _, to := range plan.Deps.Successors[row.TaskID] {
			style := ""
			if isCriticalEdge(plan, row.TaskID, to) {
				style = ` [color=red, penwidth=2]`
			}
			fmt.Fprintf(w, "  %d -> %d%s;\n", row.TaskID, to, style)
		}
	}

	fmt.Fprintln(w, "}")
}

// isCriticalEdge reports whether from → to is a step of the reported
// critical path. Two critical tasks can be joined by a slack edge.
func isCriticalEdge(plan *planner.SchedulePlan, from, to int) bool {
	for i := 1; i < len(plan.CriticalPath); i++ {
		if plan.CriticalPath[i-1] == from && plan.CriticalPath[i] == to {
			return true
		}
	}
	return false
}

func escapeDOT(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
