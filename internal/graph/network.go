package graph

import (
	"iter"
	"math"
	"slices"
	"sort"
	"time"
)

// NewNetwork creates an empty network anchored at start.
func NewNetwork(start time.Time) *Network {
	return &Network{
		start: start,
		tasks: make(map[int]*Task),
	}
}

// AddTask inserts a copy of t. Predecessor ids are de-duplicated but not
// resolved until Build.
func (n *Network) AddTask(t Task) error {
	if n.built {
		return newErr(ErrFrozen, "cannot add task %d", t.ID)
	}
	if _, ok := n.tasks[t.ID]; ok {
		return newErr(ErrDuplicateID, "task %d", t.ID)
	}
	if t.Duration < 0 || math.IsNaN(t.Duration) || math.IsInf(t.Duration, 0) {
		return newErr(ErrInvalidTask, "task %d has duration %v", t.ID, t.Duration)
	}

	cp := t
	cp.Predecessors = nil
	seen := make(map[int]bool, len(t.Predecessors))
	for _, p := range t.Predecessors {
		if seen[p] {
			continue
		}
		seen[p] = true
		cp.Predecessors = append(cp.Predecessors, p)
	}
	n.tasks[t.ID] = &cp
	return nil
}

// Build resolves edges, rejects cycles and checks that the network has
// exactly one source and one sink. Calling Build on a built network is a no-op.
func (n *Network) Build() error {
	if n.built {
		return nil
	}
	if len(n.tasks) == 0 {
		return newErr(ErrInvalidTopology, "network has no tasks")
	}

	ids := n.ids()
	adj := make(map[int][]int, len(ids))
	revAdj := make(map[int][]int, len(ids))
	for _, id := range ids {
		for _, p := range n.tasks[id].Predecessors {
			if p == id {
				return newErr(ErrInvalidTopology, "task %d depends on itself", id)
			}
			if _, ok := n.tasks[p]; !ok {
				return newErr(ErrInvalidTopology, "task %d has unknown predecessor %d", id, p)
			}
			adj[p] = append(adj[p], id)
			revAdj[id] = append(revAdj[id], p)
		}
	}
	for k := range adj {
		sort.Ints(adj[k])
	}
	for k := range revAdj {
		sort.Ints(revAdj[k])
	}

	order, depth := levelOrder(ids, adj, revAdj)
	if len(order) != len(ids) {
		cycle := detectCycle(ids, adj)
		return newErr(ErrCycle, "%d of %d tasks ordered, cycle %v", len(order), len(ids), cycle)
	}

	var sources, sinks []int
	for _, id := range ids {
		if len(revAdj[id]) == 0 {
			sources = append(sources, id)
		}
		if len(adj[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	if len(sources) != 1 {
		return newErr(ErrInvalidTopology, "expected exactly one source task, found %d %v", len(sources), sources)
	}
	if len(sinks) != 1 {
		return newErr(ErrInvalidTopology, "expected exactly one sink task, found %d %v", len(sinks), sinks)
	}

	n.adj = adj
	n.revAdj = revAdj
	n.order = order
	n.depth = depth
	n.source = sources[0]
	n.sink = sinks[0]
	n.built = true
	return nil
}

// levelOrder runs Kahn's algorithm one dependency level at a time so the
// result is ordered by (depth, id).
func levelOrder(ids []int, adj, revAdj map[int][]int) ([]int, map[int]int) {
	inDegree := make(map[int]int, len(ids))
	var level []int
	for _, id := range ids {
		inDegree[id] = len(revAdj[id])
		if inDegree[id] == 0 {
			level = append(level, id)
		}
	}

	order := make([]int, 0, len(ids))
	depth := make(map[int]int, len(ids))
	for d := 0; len(level) > 0; d++ {
		var next []int
		for _, id := range level {
			depth[id] = d
			order = append(order, id)
			for _, succ := range adj[id] {
				inDegree[succ]--
				if inDegree[succ] == 0 {
					next = append(next, succ)
				}
			}
		}
		sort.Ints(next)
		level = next
	}
	return order, depth
}

// DetectCycle returns a cycle path if one exists, or nil if the predecessor
// graph is acyclic. Unknown predecessors are ignored.
func (n *Network) DetectCycle() []int {
	ids := n.ids()
	adj := make(map[int][]int, len(ids))
	for _, id := range ids {
		for _, p := range n.tasks[id].Predecessors {
			if _, ok := n.tasks[p]; ok {
				adj[p] = append(adj[p], id)
			}
		}
	}
	for k := range adj {
		sort.Ints(adj[k])
	}
	return detectCycle(ids, adj)
}

// detectCycle is a DFS with white/gray/black colouring. The returned path
// starts and ends on the same task.
func detectCycle(ids []int, adj map[int][]int) []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[int]int, len(ids))
	parent := make(map[int]int, len(ids))

	var dfs func(node int) []int
	dfs = func(node int) []int {
		color[node] = gray
		for _, next := range adj[node] {
			if color[next] == gray {
				cycle := []int{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				slices.Reverse(cycle)
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range ids {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func (n *Network) ids() []int {
	ids := make([]int, 0, len(n.tasks))
	for id := range n.tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TopologicalOrder yields task ids with every predecessor before its
// dependents. It yields nothing before Build.
func (n *Network) TopologicalOrder() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, id := range n.order {
			if !yield(id) {
				return
			}
		}
	}
}

// Order returns a copy of the cached topological order.
func (n *Network) Order() []int {
	return slices.Clone(n.order)
}

// Depth returns the dependency level of a task (0 for the source).
func (n *Network) Depth(id int) int {
	return n.depth[id]
}

// Task returns a copy of the task with the given id.
func (n *Network) Task(id int) (Task, bool) {
	t, ok := n.tasks[id]
	if !ok {
		return Task{}, false
	}
	cp := *t
	cp.Predecessors = slices.Clone(t.Predecessors)
	return cp, true
}

// Tasks returns all tasks sorted by id.
func (n *Network) Tasks() []Task {
	out := make([]Task, 0, len(n.tasks))
	for _, id := range n.ids() {
		t, _ := n.Task(id)
		out = append(out, t)
	}
	return out
}

// Children returns the ids of tasks that list id as a predecessor.
func (n *Network) Children(id int) []int { return slices.Clone(n.adj[id]) }

// Parents returns the sorted predecessor ids of a task.
func (n *Network) Parents(id int) []int { return slices.Clone(n.revAdj[id]) }

func (n *Network) SourceID() int    { return n.source }
func (n *Network) SinkID() int      { return n.sink }
func (n *Network) Start() time.Time { return n.start }
func (n *Network) Built() bool      { return n.built }
func (n *Network) Len() int         { return len(n.tasks) }

// FixedDurations returns every task's fixed duration.
func (n *Network) FixedDurations() Durations {
	d := make(Durations, len(n.tasks))
	for id, t := range n.tasks {
		d[id] = t.Duration
	}
	return d
}

// MeanDurations returns every task's mean duration, using the sampler mean
// where one is attached.
func (n *Network) MeanDurations() Durations {
	d := make(Durations, len(n.tasks))
	for id, t := range n.tasks {
		d[id] = t.MeanDuration()
	}
	return d
}
