package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

func seedResults(t *testing.T, results *fakeResultStore, frameTimes ...string) {
	t.Helper()
	for _, frameTime := range frameTimes {
		require.NoError(t, results.Save(context.Background(), &entity.FrameResult{
			VideoName:         "concert",
			FrameTime:         frameTime,
			CorrelationID:     "corr-1",
			RawImageKey:       "concert/raw/" + frameTime + ".jpg",
			ProcessedImageKey: "concert/processed/" + frameTime + ".jpg",
		}))
	}
}

func TestAggregateOrdersFramesAscending(t *testing.T) {
	store := newFakeObjectStore()
	results := newFakeResultStore()
	run := entity.NewVideoRun("media", "videos/concert.mp4", "corr-1", 3)

	// Seed out of order; the manifest must come back sorted regardless of
	// the store's iteration order.
	seedResults(t, results, "00012", "00000", "00118", "00003", "00045")

	manifest, err := NewResultAggregator(results, store, testLogger).Aggregate(context.Background(), run, 5, nil)
	require.NoError(t, err)

	var got []string
	for _, frameResult := range manifest.FrameResults {
		got = append(got, frameResult.FrameTime)
	}
	assert.Equal(t, []string{"00000", "00003", "00012", "00045", "00118"}, got)
	assert.False(t, manifest.Partial)
	assert.Equal(t, "results/concert/arranged_results.json", manifest.ArrangedResultsKey)

	raw, err := store.Get(context.Background(), manifest.ArrangedResultsKey)
	require.NoError(t, err)
	var stored entity.AggregatedManifest
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, manifest.FrameResults, stored.FrameResults)
}

func TestAggregateRejectsCountMismatch(t *testing.T) {
	store := newFakeObjectStore()
	results := newFakeResultStore()
	run := entity.NewVideoRun("media", "videos/concert.mp4", "corr-1", 3)
	seedResults(t, results, "00000", "00001")

	_, err := NewResultAggregator(results, store, testLogger).Aggregate(context.Background(), run, 3, nil)
	require.Error(t, err)

	var mismatch *entity.AggregationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)
	assert.False(t, store.has("results/concert/arranged_results.json"),
		"a mismatched aggregation must not publish a manifest")
}

func TestAggregateMarksToleratedGapsPartial(t *testing.T) {
	store := newFakeObjectStore()
	results := newFakeResultStore()
	run := entity.NewVideoRun("media", "videos/concert.mp4", "corr-1", 3)
	seedResults(t, results, "00000", "00002")

	manifest, err := NewResultAggregator(results, store, testLogger).Aggregate(context.Background(), run, 2, []string{"00001"})
	require.NoError(t, err)
	assert.True(t, manifest.Partial)
	assert.Equal(t, []string{"00001"}, manifest.MissingFrames)
}
