package dist

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/joshharrison/cpmsim/internal/graph"
)

var specPattern = regexp.MustCompile(`^([A-Za-z_]+)\s*(?:\((.*)\))?$`)

// New builds a sampler by kind name. Parameters per kind:
//
//	point       value
//	uniform     min, max
//	triangular  min, mode, max
//	lognormal   mean, std (of the duration itself)
func New(kind string, params ...float64) (graph.Sampler, error) {
	for _, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: %s parameter %v", ErrInvalidParams, kind, p)
		}
	}

	switch strings.ToLower(kind) {
	case "point", "fixed", "constant":
		if err := arity(kind, params, 1); err != nil {
			return nil, err
		}
		if params[0] < 0 {
			return nil, fmt.Errorf("%w: point value %v is negative", ErrInvalidParams, params[0])
		}
		return Point{Value: params[0]}, nil

	case "uniform":
		if err := arity(kind, params, 2); err != nil {
			return nil, err
		}
		lo, hi := params[0], params[1]
		if lo < 0 || lo > hi {
			return nil, fmt.Errorf("%w: uniform needs 0 <= min <= max, got %v, %v", ErrInvalidParams, lo, hi)
		}
		return Uniform{Min: lo, Max: hi}, nil

	case "triangular", "tri", "three_point":
		if err := arity(kind, params, 3); err != nil {
			return nil, err
		}
		lo, mode, hi := params[0], params[1], params[2]
		if lo < 0 || lo > mode || mode > hi {
			return nil, fmt.Errorf("%w: triangular needs 0 <= min <= mode <= max, got %v, %v, %v", ErrInvalidParams, lo, mode, hi)
		}
		return Triangular{Min: lo, Mode: mode, Max: hi}, nil

	case "lognormal", "lognorm":
		if err := arity(kind, params, 2); err != nil {
			return nil, err
		}
		return NewLogNormalFromMeanStd(params[0], params[1])
	}

	return nil, fmt.Errorf("%w: unknown distribution %q", ErrInvalidParams, kind)
}

func arity(kind string, params []float64, want int) error {
	if len(params) != want {
		return fmt.Errorf("%w: %s takes %d parameters, got %d", ErrInvalidParams, kind, want, len(params))
	}
	return nil
}

// Parse reads a sampler written as kind(p1, p2, ...), for example
// "triangular(2, 3, 5)". A bare number is a point mass. An empty string
// returns a nil sampler.
func Parse(s string) (graph.Sampler, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return New("point", v)
	}

	m := specPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: cannot parse %q", ErrInvalidParams, s)
	}

	var params []float64
	if args := strings.TrimSpace(m[2]); args != "" {
		for _, field := range strings.Split(args, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q in %q", ErrInvalidParams, field, s)
			}
			params = append(params, v)
		}
	}
	return New(m[1], params...)
}
