package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/joshharrison/cpmsim/internal/ctxlog"
	"github.com/joshharrison/cpmsim/internal/planner"
	"github.com/joshharrison/cpmsim/internal/simulation"
)

// --- Graph types ---

type GraphNode struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	ES         float64 `json:"es"`
	EF         float64 `json:"ef"`
	Slack      float64 `json:"slack"`
	IsCritical bool    `json:"is_critical"`
	WaveIndex  int     `json:"wave_index"`
}

type GraphEdge struct {
	From     int  `json:"from"`
	To       int  `json:"to"`
	Critical bool `json:"critical"`
}

type GraphMetadata struct {
	ID            string  `json:"id"`
	Project       string  `json:"project"`
	CreatedAt     string  `json:"created_at"`
	Start         string  `json:"start"`
	Finish        string  `json:"finish"`
	TotalTasks    int     `json:"total_tasks"`
	TotalWaves    int     `json:"total_waves"`
	TotalDuration float64 `json:"total_duration"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []int         `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// SimulationView is the Monte Carlo aggregate served next to the graph.
type SimulationView struct {
	Summary     simulation.Summary     `json:"summary"`
	Criticality map[int]float64        `json:"criticality,omitempty"`
	Paths       []simulation.PathCount `json:"paths,omitempty"`
	Histogram   []simulation.Bin       `json:"histogram,omitempty"`
}

// ToGraph converts a SchedulePlan into the node/edge form a renderer draws.
// Nodes follow the plan's row order; edges follow each node's predecessors.
func ToGraph(plan *planner.SchedulePlan) *Graph {
	onPath := make(map[[2]int]bool, len(plan.CriticalPath))
	for i := 1; i < len(plan.CriticalPath); i++ {
		onPath[[2]int{plan.CriticalPath[i-1], plan.CriticalPath[i]}] = true
	}

	nodes := make([]GraphNode, 0, len(plan.Rows))
	var edges []GraphEdge
	for _, row := range plan.Rows {
		nodes = append(nodes, GraphNode{
			ID:         row.TaskID,
			Title:      row.Name,
			Duration:   row.Duration,
			ES:         row.ES,
			EF:         row.EF,
			Slack:      row.Slack,
			IsCritical: row.IsCritical,
			WaveIndex:  row.Wave,
		})
		for _, pred := range row.Predecessors {
			edges = append(edges, GraphEdge{
				From:     pred,
				To:       row.TaskID,
				Critical: onPath[[2]int{pred, row.TaskID}],
			})
		}
	}

	return &Graph{
		Nodes:        nodes,
		Edges:        edges,
		CriticalPath: plan.CriticalPath,
		Metadata: GraphMetadata{
			ID:            plan.ID,
			Project:       plan.Project,
			CreatedAt:     plan.CreatedAt.Format(time.RFC3339),
			Start:         plan.Start.Format(time.DateOnly),
			Finish:        plan.Finish.Format(time.DateOnly),
			TotalTasks:    plan.TotalTasks,
			TotalWaves:    plan.TotalWaves,
			TotalDuration: plan.TotalDuration,
		},
	}
}

// ToSimulationView aggregates a simulation result for serving.
func ToSimulationView(res *simulation.Result, bins int) *SimulationView {
	return &SimulationView{
		Summary:     res.Summary(),
		Criticality: res.CriticalityIndex(),
		Paths:       res.PathFrequencies(),
		Histogram:   res.Histogram(bins),
	}
}

// --- HTTP server ---

// Server holds the latest graph and simulation view in memory.
type Server struct {
	mu    sync.RWMutex
	graph *Graph
	sim   *SimulationView
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{}
}

// SetPlan replaces the served graph.
func (s *Server) SetPlan(plan *planner.SchedulePlan) {
	g := ToGraph(plan)
	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()
}

// SetSimulation replaces the served simulation view.
func (s *Server) SetSimulation(v *SimulationView) {
	s.mu.Lock()
	s.sim = v
	s.mu.Unlock()
}

func (s *Server) handlePostGraph(w http.ResponseWriter, r *http.Request) {
	var plan planner.SchedulePlan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	g := ToGraph(&plan)

	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()

	ctxlog.FromContext(r.Context()).Info("graph replaced", "plan", plan.ID, "tasks", len(g.Nodes))
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	g := s.graph
	s.mu.RUnlock()

	if g == nil {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	v := s.sim
	s.mu.RUnlock()

	if v == nil {
		http.Error(w, "no simulation loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graph", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handlePostGraph(w, r)
		case http.MethodGet:
			s.handleGetGraph(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/simulation", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleGetSimulation(w, r)
	})
	return mux
}

// Serve listens on the given port until ctx is cancelled, then shuts the
// server down.
func (s *Server) Serve(ctx context.Context, port int) error {
	logger := ctxlog.FromContext(ctx)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("viewer listening", "addr", fmt.Sprintf("http://localhost:%d", port))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown viewer: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("viewer stopped")
	return nil
}

// PostPlan sends a SchedulePlan to a running viewer server.
func PostPlan(addr string, plan *planner.SchedulePlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	resp, err := http.Post(addr+"/graph", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("POST /graph: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("POST /graph returned %d", resp.StatusCode)
	}

	return nil
}

// IsPortOpen checks if something is listening on the given address.
func IsPortOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
