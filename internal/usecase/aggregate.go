package usecase

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
	"github.com/videoxray/videoxray-pipeline-service/internal/domain/port"
)

// ResultAggregator collects every frame record for one video into a single
// ordered manifest. It must only run after the fan-out barrier; the expected
// count check turns a premature or incomplete aggregation into a hard error
// instead of a silently partial manifest.
type ResultAggregator struct {
	results port.ResultStore
	store   port.ObjectStore
	logger  *zap.Logger
}

func NewResultAggregator(results port.ResultStore, store port.ObjectStore, logger *zap.Logger) *ResultAggregator {
	return &ResultAggregator{results: results, store: store, logger: logger}
}

// Aggregate expects exactly `expected` records; missingFrames lists the
// frame times the failure tolerance already accounted for.
func (a *ResultAggregator) Aggregate(ctx context.Context, run *entity.VideoRun, expected int, missingFrames []string) (*entity.AggregatedManifest, error) {
	frameResults, err := a.results.QueryByVideo(ctx, run.VideoName)
	if err != nil {
		return nil, fmt.Errorf("load frame results for %s: %w", run.VideoName, err)
	}

	if len(frameResults) != expected {
		return nil, &entity.AggregationMismatchError{
			VideoName: run.VideoName,
			Expected:  expected,
			Got:       len(frameResults),
		}
	}

	// The store contract already orders ascending; sorting here keeps the
	// manifest ordering invariant independent of the driver.
	sort.Slice(frameResults, func(i, j int) bool {
		return frameResults[i].FrameTime < frameResults[j].FrameTime
	})

	key := fmt.Sprintf("results/%s/arranged_results.json", run.VideoName)
	manifest := &entity.AggregatedManifest{
		VideoName:          run.VideoName,
		CorrelationID:      run.CorrelationID,
		ArrangedResultsKey: key,
		FrameResults:       frameResults,
		Partial:            len(missingFrames) > 0,
		MissingFrames:      missingFrames,
	}

	if err := a.store.PutJSON(ctx, key, manifest); err != nil {
		return nil, fmt.Errorf("upload arranged results %s: %w", key, err)
	}

	a.logger.Info("final results arranged",
		zap.String("correlation_id", run.CorrelationID),
		zap.String("video_name", run.VideoName),
		zap.String("arranged_results_key", key),
		zap.Int("frame_results", len(frameResults)),
		zap.Bool("partial", manifest.Partial),
	)
	return manifest, nil
}
