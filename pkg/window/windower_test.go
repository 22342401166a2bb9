package window

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = float64(i + 1)
	}
	return s
}

func TestMakeScenario(t *testing.T) {
	w, err := Make(series(10), 3)
	require.NoError(t, err)

	require.Equal(t, 7, w.Len())
	assert.Equal(t, []float64{1, 2, 3}, w.Inputs[0])
	assert.Equal(t, 4.0, w.Targets[0])
	assert.Equal(t, []float64{2, 3, 4}, w.Inputs[1])
	assert.Equal(t, 5.0, w.Targets[1])
	assert.Equal(t, []float64{7, 8, 9}, w.Inputs[6])
	assert.Equal(t, 10.0, w.Targets[6])
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, w.Starts)
}

func TestMakeAlignment(t *testing.T) {
	for _, n := range []int{2, 5, 17, 64} {
		for _, l := range []int{1, 2, 4, n - 1} {
			if l < 1 || l >= n {
				continue
			}
			s := series(n)
			w, err := Make(s, l)
			require.NoError(t, err)
			require.Equal(t, n-l, w.Len())
			require.Len(t, w.Inputs, w.Len())

			for k := 0; k < w.Len(); k++ {
				assert.Equal(t, s[k:k+l], w.Inputs[k])
				assert.Equal(t, s[k+l], w.Targets[k])
				assert.Equal(t, k+l, w.TargetIndex(k))
			}
		}
	}
}

func TestMakeErrors(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		l       int
		wantErr error
	}{
		{"zero seq length", 10, 0, ErrInvalidSeqLength},
		{"negative seq length", 10, -2, ErrInvalidSeqLength},
		{"invalid length checked first", 0, 0, ErrInvalidSeqLength},
		{"equal length", 3, 3, ErrInsufficientData},
		{"shorter", 2, 3, ErrInsufficientData},
		{"empty", 0, 1, ErrInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Make(series(tt.n), tt.l)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, w)
		})
	}
}

func TestMakeDoesNotAlias(t *testing.T) {
	s := series(5)
	w, err := Make(s, 2)
	require.NoError(t, err)

	s[0] = 100
	assert.Equal(t, 1.0, w.Inputs[0][0])

	w.Inputs[1][0] = -1
	assert.Equal(t, 2.0, s[1])
}

func TestMakeDeterministic(t *testing.T) {
	s := series(50)
	a, err := Make(s, 7)
	require.NoError(t, err)
	b, err := Make(s, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMakeVectors(t *testing.T) {
	rows := [][]float64{{1, 10}, {2, 20}, {3, 30}, {4, 40}}
	w, err := Make(rows, 2)
	require.NoError(t, err)

	require.Equal(t, 2, w.Len())
	assert.Equal(t, [][]float64{{1, 10}, {2, 20}}, w.Inputs[0])
	assert.Equal(t, []float64{3, 30}, w.Targets[0])

	proj := SelectTargets(w, []int{1})
	assert.Equal(t, [][]float64{{30}, {40}}, proj.Targets)
	assert.Equal(t, w.Inputs, proj.Inputs)
	assert.Equal(t, []float64{3, 30}, w.Targets[0], "projection must not modify the source")
}

func TestMakeParallelMatchesMake(t *testing.T) {
	s := series(1000)
	want, err := Make(s, 12)
	require.NoError(t, err)

	for _, workers := range []int{0, 1, 2, 3, 8, 64} {
		got, err := MakeParallel(context.Background(), s, 12, workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestMakeParallelErrors(t *testing.T) {
	_, err := MakeParallel(context.Background(), series(3), 3, 4)
	assert.ErrorIs(t, err, ErrInsufficientData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = MakeParallel(ctx, series(1000), 5, 4)
	assert.ErrorIs(t, err, context.Canceled)

	// small inputs and single workers take the sequential path
	_, err = MakeParallel(ctx, series(6), 3, 4)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = MakeParallel(ctx, series(1000), 5, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
