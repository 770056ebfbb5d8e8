package dist

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMean(t *testing.T, s interface {
	Sample(*rand.Rand) float64
}, n int) (mean, lo, hi float64) {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	lo, hi = math.Inf(1), math.Inf(-1)
	sum := 0.0
	for i := 0; i < n; i++ {
		v := s.Sample(rng)
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return sum / float64(n), lo, hi
}

func TestPoint(t *testing.T) {
	p := Point{Value: 4}
	mean, lo, hi := sampleMean(t, p, 10)
	assert.Equal(t, 4.0, mean)
	assert.Equal(t, 4.0, lo)
	assert.Equal(t, 4.0, hi)
	assert.Equal(t, 4.0, p.Mean())
}

func TestUniform(t *testing.T) {
	u := Uniform{Min: 2, Max: 6}
	mean, lo, hi := sampleMean(t, u, 20000)
	assert.InDelta(t, 4.0, mean, 0.05)
	assert.GreaterOrEqual(t, lo, 2.0)
	assert.Less(t, hi, 6.0)
	assert.Equal(t, 4.0, u.Mean())
}

func TestTriangular(t *testing.T) {
	tr := Triangular{Min: 2, Mode: 3, Max: 7}
	mean, lo, hi := sampleMean(t, tr, 20000)
	assert.InDelta(t, 4.0, mean, 0.05)
	assert.GreaterOrEqual(t, lo, 2.0)
	assert.LessOrEqual(t, hi, 7.0)
	assert.Equal(t, 4.0, tr.Mean())

	degenerate := Triangular{Min: 5, Mode: 5, Max: 5}
	assert.Equal(t, 5.0, degenerate.Sample(rand.New(rand.NewPCG(0, 0))))
}

func TestLogNormal(t *testing.T) {
	ln, err := NewLogNormalFromMeanStd(10, 2)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, ln.Mean(), 1e-9)
	assert.InDelta(t, 2.0, ln.Std(), 1e-9)

	mean, lo, _ := sampleMean(t, ln, 50000)
	assert.InDelta(t, 10.0, mean, 0.1)
	assert.Greater(t, lo, 0.0)

	_, err = NewLogNormalFromMeanStd(0, 1)
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = NewLogNormalFromMeanStd(3, -1)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestSamplingIsReproducible(t *testing.T) {
	tr := Triangular{Min: 1, Mode: 2, Max: 9}
	a := rand.New(rand.NewPCG(42, 7))
	b := rand.New(rand.NewPCG(42, 7))
	for i := 0; i < 100; i++ {
		require.Equal(t, tr.Sample(a), tr.Sample(b))
	}
}

func TestNew(t *testing.T) {
	s, err := New("Uniform", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, Uniform{Min: 1, Max: 3}, s)

	s, err = New("tri", 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, Triangular{Min: 1, Mode: 2, Max: 3}, s)

	tests := []struct {
		name   string
		kind   string
		params []float64
	}{
		{"unknown kind", "beta", []float64{1, 2}},
		{"wrong arity", "uniform", []float64{1}},
		{"inverted uniform", "uniform", []float64{3, 1}},
		{"negative uniform", "uniform", []float64{-1, 1}},
		{"mode outside range", "triangular", []float64{1, 5, 3}},
		{"negative point", "point", []float64{-2}},
		{"nan parameter", "point", []float64{math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.kind, tt.params...)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Parse("triangular(2, 3, 5)")
	require.NoError(t, err)
	assert.Equal(t, Triangular{Min: 2, Mode: 3, Max: 5}, s)

	s, err = Parse(" 4.5 ")
	require.NoError(t, err)
	assert.Equal(t, Point{Value: 4.5}, s)

	s, err = Parse("lognormal(10,2)")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, s.Mean(), 1e-9)

	for _, bad := range []string{"triangular(2, x, 5)", "uniform 1 2", "(1,2)", "uniform()"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidParams, bad)
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, in := range []string{"point(3)", "uniform(1,2.5)", "triangular(1,2,4)"} {
		s, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, in, s.(interface{ String() string }).String())
	}
}
