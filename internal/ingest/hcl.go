package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclFile decodes a project file:
//
//	project "relaunch" {
//	  start = "2024-03-04"
//	}
//
//	task "2" {
//	  name         = "Design"
//	  duration     = 3
//	  predecessors = [1]
//	  distribution "triangular" {
//	    params = [2, 3, 6]
//	  }
//	}
type hclFile struct {
	Project *hclProject `hcl:"project,block"`
	Tasks   []*hclTask  `hcl:"task,block"`
}

type hclProject struct {
	Name  string  `hcl:"name,label"`
	Start *string `hcl:"start,optional"`
}

type hclTask struct {
	ID           string           `hcl:"id,label"`
	Name         string           `hcl:"name,optional"`
	Duration     *float64         `hcl:"duration,optional"`
	Predecessors hcl.Expression   `hcl:"predecessors,optional"`
	Distribution *hclDistribution `hcl:"distribution,block"`
}

type hclDistribution struct {
	Kind   string    `hcl:"kind,label"`
	Params []float64 `hcl:"params"`
}

// LoadHCL parses and decodes an HCL project file.
func LoadHCL(path string) (*Project, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return decodeHCL(f.Body)
}

// ParseHCL decodes HCL source held in memory; filename is used in diagnostics.
func ParseHCL(src []byte, filename string) (*Project, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	return decodeHCL(f.Body)
}

func decodeHCL(body hcl.Body) (*Project, error) {
	var root hclFile
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	p := &Project{}
	if root.Project != nil {
		p.Name = root.Project.Name
		if root.Project.Start != nil {
			t, err := ParseStart(*root.Project.Start)
			if err != nil {
				return nil, err
			}
			p.Start = t
		}
	}

	for _, t := range root.Tasks {
		id, err := strconv.Atoi(t.ID)
		if err != nil {
			return nil, fmt.Errorf("task %q: label must be an integer id", t.ID)
		}
		rec := Record{ID: id, Name: t.Name}

		rec.Predecessors, err = predecessorText(t.Predecessors)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", id, err)
		}
		if t.Distribution != nil {
			rec.Distribution = formatDistribution(t.Distribution.Kind, t.Distribution.Params)
		}

		raw := ""
		if t.Duration != nil {
			raw = strconv.FormatFloat(*t.Duration, 'g', -1, 64)
		}
		rec.Duration, err = resolveDuration(id, raw, rec.Distribution)
		if err != nil {
			return nil, err
		}
		p.Records = append(p.Records, rec)
	}
	return p, nil
}

// isExprDefined reports whether an optional attribute was written in the
// source. Omitted attributes decode to a zero-width placeholder expression.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	return rng.End.Byte > rng.Start.Byte
}

// predecessorText evaluates a predecessors attribute written as a string
// ("1, 2"), a single number, or a list of numbers.
func predecessorText(expr hcl.Expression) (string, error) {
	if !isExprDefined(expr) {
		return "", nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", fmt.Errorf("predecessors: %w", diags)
	}
	if val.IsNull() {
		return "", nil
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		var id int
		if err := gocty.FromCtyValue(val, &id); err != nil {
			return "", fmt.Errorf("predecessors: %w", err)
		}
		return strconv.Itoa(id), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		list, err := convert.Convert(val, cty.List(cty.Number))
		if err != nil {
			return "", fmt.Errorf("predecessors: %w", err)
		}
		var ids []int
		if err := gocty.FromCtyValue(list, &ids); err != nil {
			return "", fmt.Errorf("predecessors: %w", err)
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(id)
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("predecessors: unsupported type %s", ty.FriendlyName())
}
