package planner

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

const defaultSummaryTemplate = `Project {{.Project}}: {{.TotalTasks}} tasks in {{.TotalWaves}} waves
Start {{.Start}}, finish {{.Finish}} ({{printf "%g" .TotalDuration}} days)
Critical path: {{join .CriticalNames " -> "}}
{{- if .CriticalTies}}
Note: more than one critical chain exists; the lowest task ids were followed.
{{- end}}
`

// SummaryData holds the data used to render a summary template.
type SummaryData struct {
	Project       string
	Start         string
	Finish        string
	TotalTasks    int
	TotalWaves    int
	TotalDuration float64
	CriticalPath  []int
	CriticalNames []string
	CriticalTies  bool
}

var summaryFuncs = template.FuncMap{
	"join": strings.Join,
}

// RenderSummary renders a plan summary using either a custom template file or the default.
func RenderSummary(data SummaryData, templatePath string) (string, error) {
	tmplStr := defaultSummaryTemplate
	if templatePath != "" {
		content, err := os.ReadFile(templatePath)
		if err != nil {
			return "", err
		}
		tmplStr = string(content)
	}

	tmpl, err := template.New("summary").Funcs(summaryFuncs).Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
