package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

func newTestProcessor(store *fakeObjectStore, results *fakeResultStore, recognizer *fakeRecognizer) *FrameProcessor {
	return NewFrameProcessor(store, results, recognizer, passthroughAnnotator{}, testLogger,
		FrameProcessorConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
}

func frameFixture() (*entity.VideoRun, entity.FrameWorkItem) {
	run := entity.NewVideoRun("media", "videos/concert.mp4", "corr-1", 3)
	item := entity.FrameWorkItem{
		VideoName:   "concert",
		FrameTime:   7,
		RawFrameKey: "concert/raw/00007.jpg",
	}
	return run, item
}

func TestProcessFrameWritesResultAndProcessedImage(t *testing.T) {
	store := newFakeObjectStore()
	results := newFakeResultStore()
	recognizer := newFakeRecognizer()
	run, item := frameFixture()

	store.objects[item.RawFrameKey] = []byte("jpeg")
	recognizer.detections[item.RawFrameKey] = []entity.Detection{
		{Name: "Someone Famous", Confidence: 98.5, BoundingBox: entity.BoundingBox{Left: 0.1, Top: 0.2, Width: 0.3, Height: 0.4}},
	}

	result, err := newTestProcessor(store, results, recognizer).Process(context.Background(), run, item)
	require.NoError(t, err)

	assert.Equal(t, "00007", result.FrameTime)
	assert.Equal(t, "concert/processed/00007.jpg", result.ProcessedImageKey)
	assert.Equal(t, 1, result.CelebrityCount)
	assert.Equal(t, "corr-1", result.CorrelationID)
	assert.True(t, store.has("concert/processed/00007.jpg"))

	stored, err := results.Get(context.Background(), "concert", "00007")
	require.NoError(t, err)
	assert.Equal(t, result.Detections, stored.Detections)
}

func TestProcessFrameIsIdempotent(t *testing.T) {
	store := newFakeObjectStore()
	results := newFakeResultStore()
	recognizer := newFakeRecognizer()
	run, item := frameFixture()
	store.objects[item.RawFrameKey] = []byte("jpeg")

	processor := newTestProcessor(store, results, recognizer)
	_, err := processor.Process(context.Background(), run, item)
	require.NoError(t, err)
	_, err = processor.Process(context.Background(), run, item)
	require.NoError(t, err)

	assert.Equal(t, 1, results.count("concert"),
		"re-processing must overwrite the record, not duplicate it")
	assert.Equal(t, 2, results.saves)
}

func TestProcessFrameRetriesTransientFailures(t *testing.T) {
	store := newFakeObjectStore()
	results := newFakeResultStore()
	run, item := frameFixture()
	store.objects[item.RawFrameKey] = []byte("jpeg")

	recognizer := &flakyRecognizer{failures: 2}
	processor := NewFrameProcessor(store, results, recognizer, passthroughAnnotator{}, testLogger,
		FrameProcessorConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})

	_, err := processor.Process(context.Background(), run, item)
	require.NoError(t, err)
	assert.Equal(t, 3, recognizer.calls)
}

func TestProcessFrameGivesUpAfterMaxAttempts(t *testing.T) {
	store := newFakeObjectStore()
	results := newFakeResultStore()
	run, item := frameFixture()
	store.objects[item.RawFrameKey] = []byte("jpeg")

	recognizer := &flakyRecognizer{failures: 10}
	processor := NewFrameProcessor(store, results, recognizer, passthroughAnnotator{}, testLogger,
		FrameProcessorConfig{MaxAttempts: 2, BaseDelay: time.Millisecond})

	_, err := processor.Process(context.Background(), run, item)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempts exhausted")
	assert.Equal(t, 2, recognizer.calls)
}

func TestProcessFrameDoesNotRetryMalformedInput(t *testing.T) {
	store := newFakeObjectStore()
	results := newFakeResultStore()
	recognizer := newFakeRecognizer()
	run, item := frameFixture()
	store.objects[item.RawFrameKey] = []byte("jpeg")
	recognizer.failWith[item.RawFrameKey] = errors.New("invalid image format")

	_, err := newTestProcessor(store, results, recognizer).Process(context.Background(), run, item)
	require.Error(t, err)
	assert.Equal(t, 1, recognizer.calls, "malformed input must fail the item immediately")
	assert.Equal(t, 0, results.count("concert"))
}

// flakyRecognizer fails the first N calls with a transient error.
type flakyRecognizer struct {
	failures int
	calls    int
}

func (r *flakyRecognizer) RecognizeCelebrities(_ context.Context, _, _ string) ([]entity.Detection, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, entity.Transient("recognize_celebrities", errors.New("throttled"))
	}
	return nil, nil
}
