package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawFormulaFixed(t *testing.T) {
	e := New(1)
	v, err := e.DrawFormula("FIXED(10)")
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
}

func TestDrawUniformIntegerBoundsAreInclusive(t *testing.T) {
	e := New(42)
	seenMin, seenMax := false, false
	for i := 0; i < 5000; i++ {
		v, err := e.DrawFormula("UNIF(1, 3)")
		require.NoError(t, err)
		n := v.(int64)
		assert.GreaterOrEqual(t, n, int64(1))
		assert.LessOrEqual(t, n, int64(3))
		if n == 1 {
			seenMin = true
		}
		if n == 3 {
			seenMax = true
		}
	}
	assert.True(t, seenMin, "expected to see the minimum bound drawn")
	assert.True(t, seenMax, "expected to see the maximum bound drawn")
}

func TestDrawUniformFloatBoundsStayInRange(t *testing.T) {
	e := New(7)
	for i := 0; i < 1000; i++ {
		v, err := e.DrawFormula("UNIF(1.5, 2.5)")
		require.NoError(t, err)
		f, ok := v.(float64)
		if !ok {
			// coerced to int64 if within 1e-5 of an integer boundary draw
			continue
		}
		assert.GreaterOrEqual(t, f, 1.5)
		assert.LessOrEqual(t, f, 2.5)
	}
}

func TestDrawDiscConvergesToWeights(t *testing.T) {
	e := New(99)
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		v, err := e.DrawFormula("DISC(0.7, 'simple', 0.3, 'complex')")
		require.NoError(t, err)
		counts[v.(string)]++
	}
	frac := float64(counts["simple"]) / float64(n)
	assert.InDelta(t, 0.7, frac, 0.02)
}

func TestDrawNormalClampingInStructForm(t *testing.T) {
	e := New(3)
	spec := Spec{Type: KindNormal, Mean: 0, StdDev: 100, HasClampMin: true, Min: -1, HasClampMax: true, Max: 1}
	for i := 0; i < 200; i++ {
		v, err := e.Draw(spec)
		require.NoError(t, err)
		f, ok := v.(float64)
		if !ok {
			iv := v.(int64)
			assert.GreaterOrEqual(t, iv, int64(-1))
			assert.LessOrEqual(t, iv, int64(1))
			continue
		}
		assert.GreaterOrEqual(t, f, -1.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestDrawTriangularStaysWithinBounds(t *testing.T) {
	e := New(5)
	for i := 0; i < 2000; i++ {
		v, err := e.DrawFormula("TRIA(1, 3, 7)")
		require.NoError(t, err)
		f := toFloat(t, v)
		assert.GreaterOrEqual(t, f, 1.0-1e-9)
		assert.LessOrEqual(t, f, 7.0+1e-9)
	}
}

func TestDrawPoissonNonNegative(t *testing.T) {
	e := New(11)
	for i := 0; i < 500; i++ {
		v, err := e.DrawFormula("POIS(4)")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v.(int64), int64(0))
	}
}

func TestDrawBetaStandardFormStaysInUnitRange(t *testing.T) {
	e := New(13)
	for i := 0; i < 500; i++ {
		v, err := e.DrawFormula("BETA(2, 5)")
		require.NoError(t, err)
		f := toFloat(t, v)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestDrawRandStaysInUnitRange(t *testing.T) {
	e := New(17)
	for i := 0; i < 500; i++ {
		v, err := e.DrawFormula("RAND()")
		require.NoError(t, err)
		f := toFloat(t, v)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestDrawFormulaCachesParsedSpec(t *testing.T) {
	e := New(1)
	_, err := e.DrawFormula("UNIF(1, 10)")
	require.NoError(t, err)
	cached, err := e.resolveFormula("UNIF(1, 10)")
	require.NoError(t, err)
	assert.Equal(t, KindUniform, cached.Type)
}

func TestSampleSameSeedIsDeterministic(t *testing.T) {
	a := New(2024)
	b := New(2024)
	for i := 0; i < 50; i++ {
		va, err := a.DrawFormula("NORM(0, 1)")
		require.NoError(t, err)
		vb, err := b.DrawFormula("NORM(0, 1)")
		require.NoError(t, err)
		assert.Equal(t, va, vb)
	}
}

func TestCoerceNearIntegerRule(t *testing.T) {
	assert.Equal(t, int64(5), coerce(5.0000001))
	assert.Equal(t, int64(5), coerce(4.9999999))
	assert.IsType(t, float64(0), coerce(5.1))
}

func TestDrawExponentialOutOfRangeParams(t *testing.T) {
	e := New(1)
	_, err := e.DrawFormula("EXPO(-1)")
	require.Error(t, err)
}

func toFloat(t *testing.T, v any) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		t.Fatalf("unexpected value type %T", v)
		return math.NaN()
	}
}
