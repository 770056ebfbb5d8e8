package ui

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// SetColor forces colored output on or off, overriding terminal detection.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// PrintBanner renders the colored cpmsim banner.
func PrintBanner(w io.Writer) {
	frame := color.New(color.FgCyan)
	path := color.New(color.Bold, color.FgYellow)
	slack := color.New(color.Faint)
	brand := color.New(color.Bold, color.FgMagenta)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +-----------------------------+")
	path.Fprintln(w, "   |  o==o==o==========o==o      |")
	slack.Fprintln(w, "   |      \\--o--o---/           |")
	brand.Fprintln(w, "   |  C  P  M  S  I  M           |")
	frame.Fprintln(w, "   +-----------------------------+")
	fmt.Fprintf(w, "   %s\n", Dim("critical path scheduling & schedule risk"))
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// TaskPrefix returns a colored [#id] prefix string.
// Each task ID gets a distinct color from the palette.
func TaskPrefix(taskID int) string {
	i := taskID % len(taskColors)
	if i < 0 {
		i += len(taskColors)
	}
	return Dim("[") + taskColors[i]("#"+strconv.Itoa(taskID)) + Dim("]")
}

// CriticalMark returns the marker shown next to critical tasks.
func CriticalMark(critical bool) string {
	if critical {
		return BoldYellow("⚡")
	}
	return " "
}

// SlackLabel returns a colored slack value: zero slack is red, under a day
// yellow, anything else green.
func SlackLabel(slack float64) string {
	text := Days(slack)
	switch {
	case slack == 0:
		return Red(text)
	case slack < 1:
		return Yellow(text)
	default:
		return Green(text)
	}
}

// Days formats a day count compactly.
func Days(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + "d"
}

// Bar returns a horizontal bar scaled so that max fills width cells.
func Bar(value, max, width int) string {
	if max <= 0 || value <= 0 || width <= 0 {
		return ""
	}
	n := value * width / max
	if n == 0 {
		n = 1
	}
	return Cyan(strings.Repeat("█", n))
}

// Percent formats a fraction in [0,1] as a colored percentage.
func Percent(f float64) string {
	text := fmt.Sprintf("%5.1f%%", f*100)
	switch {
	case f >= 0.75:
		return BoldRed(text)
	case f >= 0.25:
		return Yellow(text)
	default:
		return Dim(text)
	}
}

// StatusIcon returns a colored status icon for a run status.
func StatusIcon(status string) string {
	switch status {
	case "completed":
		return Green("✓")
	case "running":
		return Cyan("●")
	case "failed":
		return Red("✗")
	case "cancelled":
		return Yellow("⊘")
	default:
		return Dim("◌")
	}
}
