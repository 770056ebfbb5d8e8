package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Header aliases, lower-cased.
var columnAliases = map[string]string{
	"taskid":       "id",
	"id":           "id",
	"task":         "name",
	"name":         "name",
	"duration":     "duration",
	"predecessors": "predecessors",
	"preds":        "predecessors",
	"depends_on":   "predecessors",
	"distribution": "distribution",
	"dist":         "distribution",
}

// ReadCSV reads a task table with a header row. The classic layout is
// TaskID, Task, Duration, Predecessors; an optional Distribution column
// attaches samplers such as "triangular(2,3,5)".
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv: missing header row")
		}
		return nil, fmt.Errorf("csv header: %w", err)
	}

	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name, ok := columnAliases[key]; ok {
			cols[name] = i
		}
	}
	if _, ok := cols["id"]; !ok {
		return nil, errors.New("csv: missing TaskID column")
	}
	if _, ok := cols["duration"]; !ok {
		if _, ok := cols["distribution"]; !ok {
			return nil, errors.New("csv: missing Duration column")
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		id, err := strconv.Atoi(field(row, "id"))
		if err != nil {
			return nil, fmt.Errorf("csv line %d: invalid task id %q", line, field(row, "id"))
		}
		rec := Record{
			ID:           id,
			Name:         field(row, "name"),
			Predecessors: field(row, "predecessors"),
			Distribution: field(row, "distribution"),
		}
		rec.Duration, err = resolveDuration(id, field(row, "duration"), rec.Distribution)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
