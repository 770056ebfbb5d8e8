package viewer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/cpmsim/internal/cpm"
	"github.com/joshharrison/cpmsim/internal/graph"
	"github.com/joshharrison/cpmsim/internal/planner"
	"github.com/joshharrison/cpmsim/internal/simulation"
)

func diamondPlan(t *testing.T) *planner.SchedulePlan {
	t.Helper()
	n := graph.NewNetwork(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	for _, tk := range []graph.Task{
		{ID: 1, Name: "Kickoff"},
		{ID: 2, Name: "Specs", Duration: 3, Predecessors: []int{1}},
		{ID: 3, Name: "Design", Duration: 5, Predecessors: []int{1}},
		{ID: 4, Name: "Build", Duration: 2, Predecessors: []int{2, 3}},
	} {
		require.NoError(t, n.AddTask(tk))
	}
	require.NoError(t, n.Build())
	res, err := cpm.Analyze(n)
	require.NoError(t, err)
	plan, err := planner.Generate(n, res, planner.PlanConfig{Project: "relaunch"})
	require.NoError(t, err)
	return plan
}

func TestToGraph(t *testing.T) {
	g := ToGraph(diamondPlan(t))

	require.Len(t, g.Nodes, 4)
	assert.Len(t, g.Edges, 4)
	assert.Equal(t, []int{1, 3, 4}, g.CriticalPath)
	assert.Equal(t, "relaunch", g.Metadata.Project)
	assert.Equal(t, "2024-03-11", g.Metadata.Finish)
	assert.Equal(t, 7.0, g.Metadata.TotalDuration)

	critical := map[[2]int]bool{}
	for _, e := range g.Edges {
		critical[[2]int{e.From, e.To}] = e.Critical
	}
	assert.Equal(t, map[[2]int]bool{
		{1, 2}: false,
		{1, 3}: true,
		{2, 4}: false,
		{3, 4}: true,
	}, critical)

	for _, n := range g.Nodes {
		if n.ID == 2 {
			assert.False(t, n.IsCritical)
			assert.Equal(t, 2.0, n.Slack)
		}
	}
}

func TestServer_GraphRoundTrip(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/graph")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, PostPlan(ts.URL, diamondPlan(t)))

	resp, err = http.Get(ts.URL + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var g Graph
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
	assert.Len(t, g.Nodes, 4)
	assert.Equal(t, []int{1, 3, 4}, g.CriticalPath)
}

func TestServer_BadRequests(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/graph", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/graph", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/simulation", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Simulation(t *testing.T) {
	srv := NewServer()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/simulation")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	res := &simulation.Result{
		Config: simulation.Config{Trials: 2, SkipCritical: true},
		Trials: []simulation.Trial{
			{Index: 0, TotalDuration: 7, CriticalPath: []int{1, 3, 4}},
			{Index: 1, TotalDuration: 9, CriticalPath: []int{1, 3, 4}},
		},
	}
	srv.SetSimulation(ToSimulationView(res, 2))

	resp, err = http.Get(ts.URL + "/simulation")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v SimulationView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, 2, v.Summary.Trials)
	assert.Equal(t, 8.0, v.Summary.Mean)
	require.Len(t, v.Paths, 1)
	assert.Equal(t, 1.0, v.Paths[0].Fraction)
	require.Len(t, v.Histogram, 2)
	assert.Equal(t, 1, v.Histogram[0].Count)
	assert.Equal(t, 1, v.Histogram[1].Count)
}

func TestServer_SetPlan(t *testing.T) {
	srv := NewServer()
	srv.SetPlan(diamondPlan(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"project":"relaunch"`)
}
