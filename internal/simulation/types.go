package simulation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshharrison/cpmsim/internal/cpm"
	"github.com/joshharrison/cpmsim/internal/graph"
)

var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrSamplerPanic  = errors.New("sampler panicked")
)

// Mode selects how each trial obtains task durations.
type Mode int

const (
	// ModeStochastic draws from each task's sampler, falling back to the
	// fixed duration when none is attached.
	ModeStochastic Mode = iota
	// ModeMean uses each sampler's mean instead of a random draw.
	ModeMean
)

func (m Mode) String() string {
	switch m {
	case ModeStochastic:
		return "stochastic"
	case ModeMean:
		return "mean"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts a CLI or config value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stochastic", "random":
		return ModeStochastic, nil
	case "mean", "deterministic":
		return ModeMean, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Config holds simulation settings.
type Config struct {
	Trials       int    `json:"trials"`
	Mode         Mode   `json:"mode"`
	Workers      int    `json:"workers"`
	Seed         uint64 `json:"seed"`
	SkipCritical bool   `json:"skip_critical"` // forward pass only in every trial

	// OnTrial is called after each finished trial, one call at a time.
	OnTrial func(done, total int) `json:"-"`
}

// Trial is the outcome of one successful Monte Carlo iteration.
type Trial struct {
	Index         int
	Durations     graph.Durations
	Schedule      *cpm.Result
	TotalDuration float64
	CriticalPath  []int
	CriticalTies  bool
}

// TrialError reports a trial that could not be scheduled.
type TrialError struct {
	Trial int
	Err   error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("trial %d: %v", e.Trial, e.Err)
}

func (e *TrialError) Unwrap() error { return e.Err }

// Result collects every trial of a run in trial order.
type Result struct {
	Config   Config
	Start    time.Time
	Trials   []Trial
	Failures []TrialError
}

// Summary holds descriptive statistics of the total project duration.
type Summary struct {
	Trials int     `json:"trials"`
	Failed int     `json:"failed"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P80    float64 `json:"p80"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
}

// PathCount is one distinct critical path and how often it occurred.
type PathCount struct {
	Path     []int   `json:"path"`
	Count    int     `json:"count"`
	Fraction float64 `json:"fraction"`
}

// Bin is one histogram bucket covering [Lo, Hi).
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}
