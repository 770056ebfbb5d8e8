// Package simulation runs Monte Carlo schedule trials over a task network.
package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshharrison/cpmsim/internal/cpm"
	"github.com/joshharrison/cpmsim/internal/ctxlog"
	"github.com/joshharrison/cpmsim/internal/graph"
)

// DefaultTrials is used when Config.Trials is zero.
const DefaultTrials = 1000

// Runner repeatedly samples durations and schedules the network. The
// network is shared read-only between workers.
type Runner struct {
	net   *graph.Network
	tasks []graph.Task
	cfg   Config
}

// New validates cfg and fills in defaults.
func New(net *graph.Network, cfg Config) (*Runner, error) {
	if !net.Built() {
		return nil, fmt.Errorf("new runner: %w", graph.ErrNotBuilt)
	}
	if cfg.Trials < 0 {
		return nil, fmt.Errorf("%w: trials must be >= 0, got %d", ErrInvalidConfig, cfg.Trials)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, cfg.Workers)
	}
	if cfg.Mode != ModeStochastic && cfg.Mode != ModeMean {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, cfg.Mode)
	}
	if cfg.Trials == 0 {
		cfg.Trials = DefaultTrials
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	return &Runner{
		net:   net,
		tasks: net.Tasks(),
		cfg:   cfg,
	}, nil
}

// Config returns the effective configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run executes all trials. Failed trials are collected in Result.Failures
// and do not stop the run. If ctx is cancelled, Run stops dispatching and
// returns the trials finished so far together with the context error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := ctxlog.FromContext(ctx)
	total := r.cfg.Trials
	started := time.Now()

	log.Debug("simulation started",
		"trials", total, "workers", r.cfg.Workers, "mode", r.cfg.Mode.String(), "seed", r.cfg.Seed)

	trials := make([]*Trial, total)
	errs := make([]error, total)

	var (
		progressMu sync.Mutex
		done       int
	)
	report := func() {
		progressMu.Lock()
		defer progressMu.Unlock()
		done++
		if r.cfg.OnTrial != nil {
			r.cfg.OnTrial(done, total)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i := 0; i < total; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			trials[i], errs[i] = r.runTrial(i)
			report()
			return nil
		})
	}
	// Workers never return errors; failures are kept per trial.
	_ = g.Wait()

	result := &Result{
		Config: r.cfg,
		Start:  r.net.Start(),
	}
	for i := 0; i < total; i++ {
		switch {
		case errs[i] != nil:
			result.Failures = append(result.Failures, TrialError{Trial: i, Err: errs[i]})
			log.Debug("trial failed", "trial", i, "error", errs[i])
		case trials[i] != nil:
			result.Trials = append(result.Trials, *trials[i])
		}
	}

	log.Info("simulation finished",
		"completed", len(result.Trials),
		"failed", len(result.Failures),
		"elapsed", time.Since(started).Round(time.Millisecond).String())

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("simulation stopped after %d of %d trials: %w",
			len(result.Trials)+len(result.Failures), total, err)
	}
	return result, nil
}

// runTrial owns its rng and durations; nothing is shared with other trials
// except the read-only network.
func (r *Runner) runTrial(index int) (trial *Trial, err error) {
	defer func() {
		if p := recover(); p != nil {
			trial, err = nil, fmt.Errorf("%w: %v", ErrSamplerPanic, p)
		}
	}()

	rng := rand.New(rand.NewPCG(r.cfg.Seed, uint64(index)))

	durations := make(graph.Durations, len(r.tasks))
	for _, t := range r.tasks {
		switch {
		case r.cfg.Mode == ModeMean:
			durations[t.ID] = t.MeanDuration()
		case t.Sampler != nil:
			durations[t.ID] = t.Sampler.Sample(rng)
		default:
			durations[t.ID] = t.Duration
		}
	}

	sched, err := cpm.Compute(r.net, durations, cpm.Options{SkipBackward: r.cfg.SkipCritical})
	if err != nil {
		return nil, err
	}
	return &Trial{
		Index:         index,
		Durations:     durations,
		Schedule:      sched,
		TotalDuration: sched.TotalDuration,
		CriticalPath:  sched.CriticalPath,
		CriticalTies:  sched.CriticalTies,
	}, nil
}
