package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
	"github.com/videoxray/videoxray-pipeline-service/internal/domain/port"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/metrics"
)

// FrameProcessor handles one fan-out branch: download the raw frame, run
// recognition against the stored object, annotate, upload the processed
// image and upsert the frame record. Every side effect is keyed by frame
// time, so repeating the whole sequence is safe.
type FrameProcessor struct {
	store      port.ObjectStore
	results    port.ResultStore
	recognizer port.CelebrityRecognizer
	annotator  port.Annotator
	logger     *zap.Logger

	maxAttempts int
	baseDelay   time.Duration
}

type FrameProcessorConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func NewFrameProcessor(
	store port.ObjectStore,
	results port.ResultStore,
	recognizer port.CelebrityRecognizer,
	annotator port.Annotator,
	logger *zap.Logger,
	cfg FrameProcessorConfig,
) *FrameProcessor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &FrameProcessor{
		store:       store,
		results:     results,
		recognizer:  recognizer,
		annotator:   annotator,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
	}
}

// Process retries transient failures with bounded attempts. Non-retryable
// failures (malformed image input) fail the item immediately.
func (p *FrameProcessor) Process(ctx context.Context, run *entity.VideoRun, item entity.FrameWorkItem) (*entity.FrameResult, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		result, err := p.processOnce(ctx, run, item)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !entity.IsTransient(err) {
			return nil, err
		}

		if attempt < p.maxAttempts {
			metrics.FrameRetryTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
			p.logger.Warn("frame processing failed, retrying",
				zap.String("correlation_id", run.CorrelationID),
				zap.String("raw_frame_key", item.RawFrameKey),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			select {
			case <-time.After(p.baseDelay * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("frame %s: attempts exhausted: %w", item.RawFrameKey, lastErr)
}

func (p *FrameProcessor) processOnce(ctx context.Context, run *entity.VideoRun, item entity.FrameWorkItem) (*entity.FrameResult, error) {
	raw, err := p.store.Get(ctx, item.RawFrameKey)
	if err != nil {
		return nil, entity.Transient("download_frame", err)
	}

	// Recognition reads the object in place; only bucket and key cross the
	// wire. The adapter already classifies malformed-input failures as
	// non-retryable.
	detections, err := p.recognizer.RecognizeCelebrities(ctx, run.Bucket, item.RawFrameKey)
	if err != nil {
		return nil, err
	}

	annotated, err := p.annotator.Annotate(raw, detections)
	if err != nil {
		return nil, fmt.Errorf("annotate %s: %w", item.RawFrameKey, err)
	}

	processedKey := strings.Replace(item.RawFrameKey, "/raw/", "/processed/", 1)
	if err := p.store.Put(ctx, processedKey, annotated, "image/jpeg"); err != nil {
		return nil, entity.Transient("upload_processed_frame", err)
	}

	result := &entity.FrameResult{
		VideoName:         item.VideoName,
		FrameTime:         entity.FrameTimeKey(item.FrameTime),
		CorrelationID:     run.CorrelationID,
		RawImageKey:       item.RawFrameKey,
		ProcessedImageKey: processedKey,
		Detections:        detections,
		CelebrityCount:    len(detections),
	}
	if err := p.results.Save(ctx, result); err != nil {
		return nil, entity.Transient("save_frame_result", err)
	}

	metrics.CelebritiesDetectedTotal.Add(float64(len(detections)))
	return result, nil
}
