package rerank

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/seqprep/pkg/store/milvus"
)

var ref = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func hits() []milvus.SearchResult {
	return []milvus.SearchResult{
		{SampleID: "old-close", Distance: 0, TEnd: ref.AddDate(0, 0, -400), Target: 0.2},
		{SampleID: "recent-far", Distance: 1, TEnd: ref.AddDate(0, 0, -10), Target: 0.6},
		{SampleID: "mid", Distance: 0.5, TEnd: ref.AddDate(0, 0, -100), Target: 0.4},
	}
}

func TestRerankExponential(t *testing.T) {
	r := NewReranker(Exponential(0.01))
	ranked := r.Rerank(hits(), ref)
	require.Len(t, ranked, 3)

	for _, h := range ranked {
		age := ref.Sub(h.TEnd).Hours() / 24
		assert.InDelta(t, math.Exp(-0.01*age), h.TimeWeight, 1e-12)
		assert.InDelta(t, h.Similarity*h.TimeWeight, h.FinalScore, 1e-12)
	}
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].FinalScore, ranked[i].FinalScore)
	}
	// 0.5*exp(-0.1) > (1/1.5)*exp(-1) > 1*exp(-4)
	assert.Equal(t, "recent-far", ranked[0].SampleID)
	assert.Equal(t, "old-close", ranked[2].SampleID)
}

func TestRerankSegments(t *testing.T) {
	r := NewReranker(DefaultSegments().Weight)
	ranked := r.Rerank(hits(), ref)

	weights := map[string]float64{}
	for _, h := range ranked {
		weights[h.SampleID] = h.TimeWeight
	}
	assert.Equal(t, map[string]float64{"recent-far": 1.0, "mid": 0.7, "old-close": 0.4}, weights)
}

func TestRerankFutureHitHasFullWeight(t *testing.T) {
	r := NewReranker(nil)
	ranked := r.Rerank([]milvus.SearchResult{{TEnd: ref.Add(time.Hour)}}, ref)
	assert.Equal(t, 1.0, ranked[0].TimeWeight)
}

func TestTopNAndFilter(t *testing.T) {
	r := NewReranker(nil)
	assert.Len(t, r.TopN(hits(), ref, 2), 2)
	assert.Len(t, r.TopN(hits(), ref, 10), 3)

	ranked := r.Rerank(hits(), ref)
	filtered := FilterByMinScore(ranked, ranked[1].FinalScore)
	assert.Len(t, filtered, 2)
}

func TestAnalogForecast(t *testing.T) {
	ranked := []RankedResult{
		{SearchResult: milvus.SearchResult{Target: 1}, FinalScore: 3},
		{SearchResult: milvus.SearchResult{Target: 2}, FinalScore: 1},
	}
	got, err := AnalogForecast(ranked)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, got, 1e-12)

	_, err = AnalogForecast(nil)
	assert.ErrorIs(t, err, ErrNoNeighbors)
}

func TestSegmentsBoundaries(t *testing.T) {
	s := DefaultSegments()
	assert.Equal(t, 1.0, s.Weight(0))
	assert.Equal(t, 1.0, s.Weight(30))
	assert.Equal(t, 0.7, s.Weight(30.5))
	assert.Equal(t, 0.7, s.Weight(365))
	assert.Equal(t, 0.4, s.Weight(366))
}
