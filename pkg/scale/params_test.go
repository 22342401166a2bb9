package scale

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestFitValidation(t *testing.T) {
	tests := []struct {
		name    string
		values  [][]float64
		cfg     Config
		wantErr error
	}{
		{"low equals high", [][]float64{{1}}, Config{Kind: KindMinMax, Low: 1, High: 1}, ErrInvalidRange},
		{"low above high", [][]float64{{1}}, Config{Kind: KindMinMax, Low: 2, High: -1}, ErrInvalidRange},
		{"empty", nil, DefaultConfig(), ErrEmptyInput},
		{"zero width", [][]float64{{}}, DefaultConfig(), ErrEmptyInput},
		{"ragged", [][]float64{{1, 2}, {3}}, DefaultConfig(), ErrShapeMismatch},
		{"nan", [][]float64{{1}, {math.NaN()}}, DefaultConfig(), ErrNonFinite},
		{"inf", [][]float64{{math.Inf(1)}}, DefaultConfig(), ErrNonFinite},
		{"unknown kind", [][]float64{{1}}, Config{Kind: "robust"}, ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Fit(tt.values, tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, p.Fitted())
		})
	}
}

func TestMinMaxTransform(t *testing.T) {
	values := [][]float64{{10, -5}, {20, 0}, {30, 5}}

	p, err := Fit(values, Config{Kind: KindMinMax, Low: -1, High: 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, -5}, p.Min)
	assert.Equal(t, []float64{30, 5}, p.Max)
	assert.Equal(t, 3, p.Count)

	scaled, err := p.Transform(values)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-1, -1}, {0, 0}, {1, 1}}, scaled)
}

func TestConstantColumn(t *testing.T) {
	t.Run("minmax maps to low", func(t *testing.T) {
		p, err := FitColumn([]float64{5, 5, 5, 5}, Config{Kind: KindMinMax, Low: 0, High: 1})
		require.NoError(t, err)

		scaled, err := p.TransformColumn([]float64{5, 5, 5, 5})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 0, 0}, scaled)

		back, err := p.InverseTransformColumn(scaled)
		require.NoError(t, err)
		assert.Equal(t, []float64{5, 5, 5, 5}, back)
	})

	t.Run("minmax custom low", func(t *testing.T) {
		p, err := FitColumn([]float64{7, 7}, Config{Kind: KindMinMax, Low: -3, High: 3})
		require.NoError(t, err)

		scaled, err := p.TransformColumn([]float64{7, 100})
		require.NoError(t, err)
		assert.Equal(t, []float64{-3, -3}, scaled)
	})

	t.Run("standard maps to zero", func(t *testing.T) {
		p, err := FitColumn([]float64{2, 2, 2}, Config{Kind: KindStandard})
		require.NoError(t, err)

		scaled, err := p.TransformColumn([]float64{2, 2})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0}, scaled)

		back, err := p.InverseTransformColumn(scaled)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 2}, back)
	})
}

func TestRoundTrip(t *testing.T) {
	fitting := [][]float64{{101.5, 3e6}, {99.2, 2.1e6}, {104.8, 4.4e6}, {100.0, 1e6}}
	// includes values outside the fitted range
	inputs := append(fitting, []float64{50, 0}, []float64{250.25, 9.9e6}, []float64{-10, -1})

	configs := map[string]Config{
		"minmax unit":  DefaultConfig(),
		"minmax wide":  {Kind: KindMinMax, Low: -1, High: 1},
		"minmax shift": {Kind: KindMinMax, Low: 10, High: 12.5},
		"standard":     {Kind: KindStandard},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			p, err := Fit(fitting, cfg)
			require.NoError(t, err)

			scaled, err := p.Transform(inputs)
			require.NoError(t, err)

			back, err := p.InverseTransform(scaled)
			require.NoError(t, err)

			require.Len(t, back, len(inputs))
			for i := range inputs {
				for j := range inputs[i] {
					assert.InDelta(t, inputs[i][j], back[i][j], tolerance*math.Max(1, math.Abs(inputs[i][j])))
				}
			}
		})
	}
}

func TestStandardTransform(t *testing.T) {
	p, err := FitColumn([]float64{1, 2, 3, 4, 5}, Config{Kind: KindStandard})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, p.Mean[0], tolerance)
	assert.InDelta(t, math.Sqrt(2), p.Std[0], tolerance)

	scaled, err := p.TransformColumn([]float64{3, 3 + math.Sqrt(2)})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scaled[0], tolerance)
	assert.InDelta(t, 1.0, scaled[1], tolerance)
}

func TestTransformErrors(t *testing.T) {
	var zero Params
	_, err := zero.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = zero.InverseValue(0, 1)
	assert.ErrorIs(t, err, ErrNotFitted)

	p, err := Fit([][]float64{{1, 2}, {3, 4}}, DefaultConfig())
	require.NoError(t, err)

	_, err = p.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = p.InverseValue(2, 0.5)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	v, err := p.InverseValue(1, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, v, tolerance)

	out, err := p.Transform(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTransformIsPure(t *testing.T) {
	values := [][]float64{{1}, {2}, {3}}
	p, err := Fit(values, DefaultConfig())
	require.NoError(t, err)

	first, err := p.Transform(values)
	require.NoError(t, err)
	second, err := p.Transform(values)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, [][]float64{{1}, {2}, {3}}, values, "input must not be modified")
}

func TestParamsJSON(t *testing.T) {
	p, err := Fit([][]float64{{1, 10}, {2, 30}}, Config{Kind: KindMinMax, Low: -1, High: 1})
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var restored Params
	require.NoError(t, json.Unmarshal(raw, &restored))
	assert.Equal(t, p, restored)
}

func TestClone(t *testing.T) {
	p, err := Fit([][]float64{{1}, {2}}, DefaultConfig())
	require.NoError(t, err)

	cp := p.Clone()
	cp.Min[0] = 42
	assert.Equal(t, 1.0, p.Min[0])
}
