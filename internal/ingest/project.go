// Package ingest reads task tables from CSV, JSON and HCL project files.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joshharrison/cpmsim/internal/ctxlog"
	"github.com/joshharrison/cpmsim/internal/dist"
	"github.com/joshharrison/cpmsim/internal/graph"
)

// Record is one row of an ingested task table. Predecessors keep their raw
// text form and are parsed when the network is built.
type Record struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Duration     float64 `json:"duration"`
	Predecessors string  `json:"predecessors"`
	Distribution string  `json:"distribution,omitempty"`
}

// Project is an ingested task table with its start anchor.
type Project struct {
	Name    string
	Start   time.Time
	Records []Record
}

// Network builds and validates a task network from the project records.
func (p *Project) Network() (*graph.Network, error) {
	net := graph.NewNetwork(p.Start)
	for _, rec := range p.Records {
		sampler, err := dist.Parse(rec.Distribution)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", rec.ID, err)
		}
		err = net.AddTask(graph.Task{
			ID:           rec.ID,
			Name:         rec.Name,
			Duration:     rec.Duration,
			Predecessors: graph.ParsePredecessors(rec.Predecessors),
			Sampler:      sampler,
		})
		if err != nil {
			return nil, err
		}
	}
	if err := net.Build(); err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}
	return net, nil
}

// Load reads a project file, choosing the format from its extension.
func Load(ctx context.Context, path string) (*Project, error) {
	logger := ctxlog.FromContext(ctx)

	var (
		p   *Project
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		p, err = loadCSV(path)
	case ".json":
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			p, err = ReadJSON(data)
		}
	case ".jsonl", ".ndjson":
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			p = &Project{}
			p.Records, err = ReadJSONLines(data)
		}
	case ".hcl":
		p, err = LoadHCL(path)
	default:
		return nil, fmt.Errorf("unsupported project file %s: want .csv, .json, .jsonl or .hcl", path)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.Start.IsZero() {
		p.Start, _ = ParseStart("")
	}
	logger.Debug("project loaded", "path", path, "name", p.Name, "tasks", len(p.Records), "start", p.Start.Format(time.DateOnly))
	return p, nil
}

func loadCSV(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return &Project{Records: records}, nil
}

// ParseStart accepts RFC 3339 timestamps or plain dates. An empty string
// means today at midnight UTC.
func ParseStart(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// resolveDuration returns the explicit duration when present, otherwise the
// mean of the distribution.
func resolveDuration(id int, raw string, distribution string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("task %d: invalid duration %q", id, raw)
		}
		return d, nil
	}
	sampler, err := dist.Parse(distribution)
	if err != nil {
		return 0, fmt.Errorf("task %d: %w", id, err)
	}
	if sampler == nil {
		return 0, fmt.Errorf("task %d: no duration or distribution", id)
	}
	return sampler.Mean(), nil
}

func formatDistribution(kind string, params []float64) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return fmt.Sprintf("%s(%s)", kind, strings.Join(parts, ","))
}
