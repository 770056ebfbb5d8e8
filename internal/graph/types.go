package graph

import (
	"math/rand/v2"
	"time"
)

// Sampler draws task durations. Implementations must be safe for concurrent
// use when each caller supplies its own rng.
type Sampler interface {
	Sample(rng *rand.Rand) float64
	Mean() float64
}

// Task is a single unit of work in a project network.
type Task struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Duration     float64 `json:"duration"` // days
	Predecessors []int   `json:"predecessors,omitempty"`
	Sampler      Sampler `json:"-"` // optional; nil means Duration is authoritative
}

// MeanDuration returns the sampler mean when one is attached, otherwise the
// fixed duration.
func (t *Task) MeanDuration() float64 {
	if t.Sampler != nil {
		return t.Sampler.Mean()
	}
	return t.Duration
}

// Durations maps task id to duration in days.
type Durations map[int]float64

// Network is a directed acyclic graph of tasks with a single source and sink.
// The task and edge structure is frozen once Build succeeds.
type Network struct {
	start time.Time
	tasks map[int]*Task

	built  bool
	adj    map[int][]int // task -> tasks that depend on it
	revAdj map[int][]int // task -> its predecessors
	order  []int
	depth  map[int]int
	source int
	sink   int
}
