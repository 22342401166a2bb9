package scale

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizerNotFitted(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	assert.False(t, n.IsFitted())

	_, err := n.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = n.InverseTransform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = n.Params()
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestNormalizerFitTransform(t *testing.T) {
	n := NewNormalizer(DefaultConfig())

	scaled, err := n.FitTransform([][]float64{{0}, {5}, {10}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0}, {0.5}, {1}}, scaled)

	// validation/test data reuses the training parameters
	later, err := n.Transform([][]float64{{20}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}}, later)
}

func TestNormalizerFailedFitKeepsParams(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	require.NoError(t, n.Fit([][]float64{{0}, {10}}))

	err := n.Fit(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	p, err := n.Params()
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, p.Min)
	assert.Equal(t, []float64{10}, p.Max)
}

func TestNormalizerInvalidRangeNeverFits(t *testing.T) {
	n := NewNormalizer(Config{Kind: KindMinMax, Low: 1, High: 0})
	err := n.Fit([][]float64{{1}})
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.False(t, n.IsFitted())
}

func TestFromParams(t *testing.T) {
	p, err := Fit([][]float64{{2}, {4}}, Config{Kind: KindMinMax, Low: -1, High: 1})
	require.NoError(t, err)

	n, err := FromParams(p)
	require.NoError(t, err)

	out, err := n.Transform([][]float64{{3}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0}}, out)

	_, err = FromParams(Params{})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestNormalizerParamsIsolation(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	require.NoError(t, n.Fit([][]float64{{0}, {10}}))

	p, err := n.Params()
	require.NoError(t, err)
	p.Max[0] = 1000

	out, err := n.Transform([][]float64{{10}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}}, out)
}

func TestNormalizerConcurrentUse(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	require.NoError(t, n.Fit([][]float64{{0}, {10}}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = n.Fit([][]float64{{0}, {10}})
				return
			}
			out, err := n.Transform([][]float64{{5}})
			assert.NoError(t, err)
			assert.Equal(t, [][]float64{{0.5}}, out)
		}(i)
	}
	wg.Wait()
}
