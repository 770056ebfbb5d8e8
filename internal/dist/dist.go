// Package dist provides duration samplers for stochastic scheduling.
package dist

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
)

var ErrInvalidParams = errors.New("invalid distribution parameters")

// Point always returns the same duration.
type Point struct {
	Value float64
}

func (p Point) Sample(*rand.Rand) float64 { return p.Value }
func (p Point) Mean() float64             { return p.Value }
func (p Point) String() string            { return fmt.Sprintf("point(%s)", fmtF(p.Value)) }

// Uniform samples evenly from [Min, Max).
type Uniform struct {
	Min, Max float64
}

func (u Uniform) Sample(rng *rand.Rand) float64 {
	return u.Min + rng.Float64()*(u.Max-u.Min)
}

func (u Uniform) Mean() float64 { return (u.Min + u.Max) / 2 }

func (u Uniform) String() string {
	return fmt.Sprintf("uniform(%s,%s)", fmtF(u.Min), fmtF(u.Max))
}

// Triangular is the three-point estimate distribution: optimistic,
// most likely and pessimistic durations.
type Triangular struct {
	Min, Mode, Max float64
}

// Sample uses the inverse CDF.
func (t Triangular) Sample(rng *rand.Rand) float64 {
	width := t.Max - t.Min
	if width == 0 {
		return t.Min
	}
	u := rng.Float64()
	if u < (t.Mode-t.Min)/width {
		return t.Min + math.Sqrt(u*width*(t.Mode-t.Min))
	}
	return t.Max - math.Sqrt((1-u)*width*(t.Max-t.Mode))
}

func (t Triangular) Mean() float64 { return (t.Min + t.Mode + t.Max) / 3 }

func (t Triangular) String() string {
	return fmt.Sprintf("triangular(%s,%s,%s)", fmtF(t.Min), fmtF(t.Mode), fmtF(t.Max))
}

// LogNormal represents a LogNormal distribution.
// If X ~ LogNormal(μ, σ), then ln(X) ~ Normal(μ, σ).
type LogNormal struct {
	Mu    float64 // Location parameter (mean of ln(X))
	Sigma float64 // Scale parameter (std dev of ln(X))
}

// NewLogNormalFromMeanStd creates a LogNormal from mean and std of X (not ln(X)).
func NewLogNormalFromMeanStd(mean, std float64) (LogNormal, error) {
	if mean <= 0 || std < 0 || math.IsNaN(mean) || math.IsNaN(std) {
		return LogNormal{}, fmt.Errorf("%w: lognormal needs mean > 0 and std >= 0, got %v, %v", ErrInvalidParams, mean, std)
	}

	// E[X] = exp(μ + σ²/2)
	// Var[X] = exp(2μ + σ²)(exp(σ²) - 1)
	variance := std * std
	sigma2 := math.Log(1 + variance/(mean*mean))
	return LogNormal{
		Mu:    math.Log(mean) - sigma2/2,
		Sigma: math.Sqrt(sigma2),
	}, nil
}

// Sample generates Normal(μ, σ) then exponentiates.
func (d LogNormal) Sample(rng *rand.Rand) float64 {
	return math.Exp(rng.NormFloat64()*d.Sigma + d.Mu)
}

// Mean returns E[X].
func (d LogNormal) Mean() float64 {
	return math.Exp(d.Mu + d.Sigma*d.Sigma/2)
}

// Std returns the standard deviation of X.
func (d LogNormal) Std() float64 {
	sigma2 := d.Sigma * d.Sigma
	return math.Sqrt(math.Exp(2*d.Mu+sigma2) * (math.Exp(sigma2) - 1))
}

func (d LogNormal) String() string {
	return fmt.Sprintf("lognormal(%s,%s)", fmtF(d.Mean()), fmtF(d.Std()))
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
