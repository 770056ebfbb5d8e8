package simulation

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TotalDurations returns the project duration of each successful trial.
func (r *Result) TotalDurations() []float64 {
	out := make([]float64, len(r.Trials))
	for i, t := range r.Trials {
		out[i] = t.TotalDuration
	}
	return out
}

// Summary computes descriptive statistics over successful trials.
func (r *Result) Summary() Summary {
	s := Summary{
		Trials: len(r.Trials),
		Failed: len(r.Failures),
	}
	if len(r.Trials) == 0 {
		return s
	}

	sorted := r.sortedTotals()
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	s.Mean = sum / float64(len(sorted))
	if len(sorted) > 1 {
		ss := 0.0
		for _, v := range sorted {
			ss += (v - s.Mean) * (v - s.Mean)
		}
		s.StdDev = math.Sqrt(ss / float64(len(sorted)-1))
	}

	s.P50 = percentile(sorted, 50)
	s.P80 = percentile(sorted, 80)
	s.P90 = percentile(sorted, 90)
	s.P95 = percentile(sorted, 95)
	return s
}

// Percentile returns the p-th percentile (0-100) of the total duration,
// interpolating linearly between ranks. It is NaN when no trial succeeded.
func (r *Result) Percentile(p float64) float64 {
	return percentile(r.sortedTotals(), p)
}

func (r *Result) sortedTotals() []float64 {
	totals := r.TotalDurations()
	sort.Float64s(totals)
	return totals
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// CriticalityIndex returns, per task, the fraction of successful trials in
// which it had zero slack. Empty when critical data was skipped.
func (r *Result) CriticalityIndex() map[int]float64 {
	idx := make(map[int]float64)
	if r.Config.SkipCritical || len(r.Trials) == 0 {
		return idx
	}
	for _, t := range r.Trials {
		for id := range t.Schedule.Tasks {
			if _, ok := idx[id]; !ok {
				idx[id] = 0
			}
		}
		for _, id := range t.Schedule.CriticalTasks {
			idx[id]++
		}
	}
	n := float64(len(r.Trials))
	for id := range idx {
		idx[id] /= n
	}
	return idx
}

// PathFrequencies lists each distinct critical path, most frequent first.
func (r *Result) PathFrequencies() []PathCount {
	counts := make(map[string]*PathCount)
	for _, t := range r.Trials {
		if len(t.CriticalPath) == 0 {
			continue
		}
		key := pathKey(t.CriticalPath)
		pc, ok := counts[key]
		if !ok {
			pc = &PathCount{Path: slices.Clone(t.CriticalPath)}
			counts[key] = pc
		}
		pc.Count++
	}

	out := make([]PathCount, 0, len(counts))
	for _, pc := range counts {
		pc.Fraction = float64(pc.Count) / float64(len(r.Trials))
		out = append(out, *pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return slices.Compare(out[i].Path, out[j].Path) < 0
	})
	return out
}

func pathKey(path []int) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ">")
}

// FinishDate returns the earliest finish date of a task in the trial with
// the given index.
func (r *Result) FinishDate(trial, taskID int) (time.Time, error) {
	i, ok := slices.BinarySearchFunc(r.Trials, trial, func(t Trial, target int) int {
		return t.Index - target
	})
	if !ok {
		return time.Time{}, fmt.Errorf("trial %d has no schedule", trial)
	}
	d, ok := r.Trials[i].Schedule.FinishDate(taskID)
	if !ok {
		return time.Time{}, fmt.Errorf("trial %d: unknown task %d", trial, taskID)
	}
	return d, nil
}

// Histogram buckets total durations into equal-width bins between the
// minimum and maximum. The last bin includes the maximum.
func (r *Result) Histogram(bins int) []Bin {
	if bins <= 0 || len(r.Trials) == 0 {
		return nil
	}
	sorted := r.sortedTotals()
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return []Bin{{Lo: lo, Hi: hi, Count: len(sorted)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[bins-1].Hi = hi
	for _, v := range sorted {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}
