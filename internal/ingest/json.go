package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ReadJSON reads either a bare array of task objects or a project object:
//
//	{"name": "...", "start": "2024-03-04", "tasks": [{"id": 1, ...}]}
//
// Predecessors may be a string ("1,2") or an array of ids. A distribution
// may be a string ("triangular(2,3,5)") or {"kind": "...", "params": [...]}.
func ReadJSON(data []byte) (*Project, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("json: invalid document")
	}
	root := gjson.ParseBytes(data)

	p := &Project{}
	tasks := root
	if root.IsObject() {
		p.Name = root.Get("name").String()
		if start := root.Get("start"); start.Exists() {
			t, err := ParseStart(start.String())
			if err != nil {
				return nil, fmt.Errorf("json: %w", err)
			}
			p.Start = t
		}
		tasks = root.Get("tasks")
	}
	if !tasks.IsArray() {
		return nil, errors.New("json: expected an array of tasks")
	}

	var err error
	tasks.ForEach(func(key, item gjson.Result) bool {
		var rec Record
		rec, err = jsonRecord(item)
		if err != nil {
			err = fmt.Errorf("json task %d: %w", key.Int(), err)
			return false
		}
		p.Records = append(p.Records, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ReadJSONLines reads one task object per line. Blank lines are skipped.
func ReadJSONLines(data []byte) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !gjson.Valid(text) {
			return nil, fmt.Errorf("jsonl line %d: invalid json", line)
		}
		rec, err := jsonRecord(gjson.Parse(text))
		if err != nil {
			return nil, fmt.Errorf("jsonl line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: %w", err)
	}
	return records, nil
}

func jsonRecord(item gjson.Result) (Record, error) {
	if !item.IsObject() {
		return Record{}, errors.New("expected an object")
	}

	idField := firstOf(item, "id", "TaskID", "task_id")
	if idField.Type != gjson.Number {
		return Record{}, errors.New("missing numeric id")
	}
	rec := Record{
		ID:   int(idField.Int()),
		Name: firstOf(item, "name", "Task", "task").String(),
	}

	switch preds := firstOf(item, "predecessors", "Predecessors", "depends_on"); {
	case preds.IsArray():
		var ids []string
		preds.ForEach(func(_, v gjson.Result) bool {
			ids = append(ids, v.String())
			return true
		})
		rec.Predecessors = strings.Join(ids, ",")
	case preds.Exists():
		rec.Predecessors = preds.String()
	}

	if d := item.Get("distribution"); d.IsObject() {
		var params []float64
		d.Get("params").ForEach(func(_, v gjson.Result) bool {
			params = append(params, v.Float())
			return true
		})
		rec.Distribution = formatDistribution(d.Get("kind").String(), params)
	} else {
		rec.Distribution = d.String()
	}

	raw := ""
	if d := firstOf(item, "duration", "Duration"); d.Exists() {
		if d.Type != gjson.Number {
			return Record{}, fmt.Errorf("task %d: duration must be a number", rec.ID)
		}
		raw = strconv.FormatFloat(d.Float(), 'g', -1, 64)
	}
	var err error
	rec.Duration, err = resolveDuration(rec.ID, raw, rec.Distribution)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func firstOf(item gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
