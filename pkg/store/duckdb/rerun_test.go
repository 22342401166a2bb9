package duckdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/seqprep/pkg/model"
	"github.com/tunogya/seqprep/pkg/pipeline"
	"github.com/tunogya/seqprep/pkg/scale"
)

func rampSeries(name string, n int, fields ...string) *model.Series {
	s := &model.Series{Name: name, Fields: fields}
	for i := 0; i < n; i++ {
		row := make([]float64, len(fields))
		for j := range row {
			row[j] = float64(100*(j+1) + i)
		}
		s.Timestamps = append(s.Timestamps, t0.AddDate(0, 0, i))
		s.Values = append(s.Values, row)
	}
	return s
}

func prepareRecords(t *testing.T, s *model.Series, seqLength int) []model.SampleRecord {
	t.Helper()
	res, err := pipeline.Prepare(context.Background(), s, pipeline.Config{
		SeqLength:    seqLength,
		TestFraction: 0.2,
		ValFraction:  0.2,
		Scaler:       scale.DefaultConfig(),
		FitScope:     pipeline.FitTrain,
		Workers:      2,
	}, nil)
	require.NoError(t, err)
	return res.Records(1)
}

func storedSamples(t *testing.T, repo *SampleRepo, series string) []model.SampleRecord {
	t.Helper()
	var all []model.SampleRecord
	for _, sp := range []string{model.SplitTrain, model.SplitVal, model.SplitTest} {
		got, err := repo.GetBySplit(context.Background(), series, sp)
		require.NoError(t, err)
		all = append(all, got...)
	}
	return all
}

func TestSampleRepoReplaceRunDropsEarlierRun(t *testing.T) {
	ctx := context.Background()
	repo := NewSampleRepo(newTestClient(t))
	s := rampSeries("BTCUSDT_1d", 20, "close")

	first := prepareRecords(t, s, 3)
	require.Len(t, first, 17)
	require.NoError(t, repo.ReplaceRun(ctx, s.Name, t0, first))

	second := prepareRecords(t, s, 5)
	require.Len(t, second, 15)
	require.NoError(t, repo.ReplaceRun(ctx, s.Name, t0.Add(time.Hour), second))

	counts, err := repo.CountBySplit(ctx, s.Name)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{model.SplitTrain: 10, model.SplitVal: 2, model.SplitTest: 3}, counts)

	stored := storedSamples(t, repo, s.Name)
	require.Len(t, stored, 15)
	for _, rec := range stored {
		assert.Equal(t, 5, rec.SeqLength, rec.SampleID)
		assert.True(t, rec.CreatedAt.Equal(t0.Add(time.Hour)))
	}
}

func TestSampleRepoReplaceRunInBatches(t *testing.T) {
	ctx := context.Background()
	repo := NewSampleRepo(newTestClient(t))
	s := rampSeries("s", 20, "close")

	require.NoError(t, repo.ReplaceRun(ctx, s.Name, t0, prepareRecords(t, s, 3)))

	// a queued run arrives split by split; later batches keep earlier ones
	runAt := t0.Add(time.Minute)
	recs := prepareRecords(t, s, 4)
	require.Len(t, recs, 16)
	for from := 0; from < len(recs); from += 5 {
		to := min(from+5, len(recs))
		require.NoError(t, repo.ReplaceRun(ctx, s.Name, runAt, recs[from:to]))
	}
	assert.Len(t, storedSamples(t, repo, s.Name), 16)

	// replaying the first run after the second changes nothing
	err := repo.ReplaceRun(ctx, s.Name, t0, prepareRecords(t, s, 3))
	assert.ErrorIs(t, err, ErrStaleRun)
	for _, rec := range storedSamples(t, repo, s.Name) {
		assert.Equal(t, 4, rec.SeqLength)
	}
}

func TestSampleRepoReplaceRunLeavesOtherSeries(t *testing.T) {
	ctx := context.Background()
	repo := NewSampleRepo(newTestClient(t))
	a := rampSeries("a", 10, "close")
	b := rampSeries("b", 10, "close")

	require.NoError(t, repo.ReplaceRun(ctx, a.Name, t0, prepareRecords(t, a, 3)))
	require.NoError(t, repo.ReplaceRun(ctx, b.Name, t0.Add(time.Hour), prepareRecords(t, b, 3)))
	assert.Len(t, storedSamples(t, repo, a.Name), 7)

	err := repo.ReplaceRun(ctx, a.Name, t0, prepareRecords(t, b, 3))
	assert.Error(t, err)

	require.NoError(t, repo.DeleteSeries(ctx, a.Name))
	assert.Empty(t, storedSamples(t, repo, a.Name))
	assert.Len(t, storedSamples(t, repo, b.Name), 7)
}

func TestObservationRepoReplaceSeries(t *testing.T) {
	ctx := context.Background()
	repo := NewObservationRepo(newTestClient(t))

	require.NoError(t, repo.ReplaceSeries(ctx, rampSeries("s", 10, "close", "volume")))

	// fewer rows and a different field set
	next := rampSeries("s", 6, "log_return")
	require.NoError(t, repo.ReplaceSeries(ctx, next))

	got, err := repo.GetSeries(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"log_return"}, got.Fields)
	assert.Equal(t, next.Values, got.Values)

	n, err := repo.Count(ctx, "s")
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)

	require.NoError(t, repo.DeleteSeries(ctx, "s"))
	_, err = repo.GetSeries(ctx, "s")
	assert.ErrorIs(t, err, ErrNotFound)
}
