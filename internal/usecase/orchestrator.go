package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
	"github.com/videoxray/videoxray-pipeline-service/internal/domain/port"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/metrics"
)

// Stage identifies one node of the fixed pipeline graph:
// Ingest -> ExtractFrames -> FanOutProcess -> Aggregate -> Success | Failure.
type Stage string

const (
	StageIngest        Stage = "Ingest"
	StageExtractFrames Stage = "ExtractFrames"
	StageFanOutProcess Stage = "FanOutProcess"
	StageAggregate     Stage = "Aggregate"
	StageSuccess       Stage = "Success"
	StageFailure       Stage = "Failure"
)

// runState is the job-context threaded through the stages. Each stage
// receives a copy, fills in the fields it produces and names its successor;
// the dispatch table below is the whole stage graph, there is no dynamic
// routing.
type runState struct {
	Trigger       entity.VideoUploadedMessage
	Run           *entity.VideoRun
	ManifestKey   string
	Items         []entity.FrameWorkItem
	Manifest      *entity.AggregatedManifest
	MissingFrames []string
	FailErr       error
	Permanent     bool
}

type stageFunc func(ctx context.Context, st runState) (runState, Stage)

type OrchestratorConfig struct {
	TempDir          string
	MaxConcurrency   int
	FailureTolerance int
	RunMaxAttempts   int
	ExtractTimeout   time.Duration
	FrameTimeout     time.Duration
	AggregateTimeout time.Duration
}

// Orchestrator sequences one pipeline run per triggering event and is the
// sole authority for terminal state transitions.
type Orchestrator struct {
	runs       port.RunRepository
	store      port.ObjectStore
	extractor  port.FrameExtractor
	processor  *FrameProcessor
	aggregator *ResultAggregator
	publisher  port.StatusPublisher
	dlq        port.DLQPublisher
	notifier   port.FailureNotifier
	logger     *zap.Logger
	cfg        OrchestratorConfig

	stages map[Stage]stageFunc
}

func NewOrchestrator(
	runs port.RunRepository,
	store port.ObjectStore,
	extractor port.FrameExtractor,
	processor *FrameProcessor,
	aggregator *ResultAggregator,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	o := &Orchestrator{
		runs:       runs,
		store:      store,
		extractor:  extractor,
		processor:  processor,
		aggregator: aggregator,
		publisher:  publisher,
		dlq:        dlq,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
	o.stages = map[Stage]stageFunc{
		StageIngest:        o.stageIngest,
		StageExtractFrames: o.stageExtractFrames,
		StageFanOutProcess: o.stageFanOutProcess,
		StageAggregate:     o.stageAggregate,
	}
	return o
}

// Execute drives one triggering event to a terminal state. A non-nil return
// tells the consumer to redeliver; malformed and permanently failed triggers
// are acked after landing in the DLQ.
func (o *Orchestrator) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "Orchestrator.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.VideoUploadedMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		o.logger.Error("failed to unmarshal trigger", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = o.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	st := runState{Trigger: msg}
	stage := StageIngest
	for stage != StageSuccess && stage != StageFailure {
		handler := o.stages[stage]
		stageName := string(stage)

		stageStart := time.Now()
		stageCtx, stageSpan := tracer.Start(ctx, stageName)
		if st.Run != nil {
			stageSpan.SetAttributes(
				attribute.String("run.correlation_id", st.Run.CorrelationID),
				attribute.String("run.video_name", st.Run.VideoName),
			)
		}
		st, stage = handler(stageCtx, st)
		stageSpan.End()
		metrics.StageDuration.WithLabelValues(stageName).Observe(time.Since(stageStart).Seconds())
	}

	if stage == StageSuccess {
		o.finishSuccess(ctx, st, totalTimer)
		return nil
	}
	return o.finishFailure(ctx, st, rawMsg)
}

// stageIngest validates the triggering event and establishes the run's
// identity. The correlation id is fixed here and never changes afterwards.
func (o *Orchestrator) stageIngest(ctx context.Context, st runState) (runState, Stage) {
	if err := validateTrigger(st.Trigger); err != nil {
		st.FailErr = err
		st.Permanent = true
		return st, StageFailure
	}

	run := o.resolveRun(ctx, st.Trigger)
	st.Run = run

	if !run.CanRetry() {
		st.FailErr = fmt.Errorf("run %s exhausted %d attempts", run.CorrelationID, run.MaxAttempts)
		st.Permanent = true
		return st, StageFailure
	}

	fresh := run.Attempt == 0
	run.MarkProcessing()
	var err error
	if fresh {
		err = o.runs.Create(ctx, run)
	} else {
		err = o.runs.Update(ctx, run)
	}
	if err != nil {
		st.FailErr = fmt.Errorf("persist run record: %w", err)
		return st, StageFailure
	}

	o.logger.Info("run ingested",
		zap.String("correlation_id", run.CorrelationID),
		zap.String("video_name", run.VideoName),
		zap.String("input_key", run.InputKey),
		zap.Int("attempt", run.Attempt),
	)
	return st, StageExtractFrames
}

func (o *Orchestrator) stageExtractFrames(ctx context.Context, st runState) (runState, Stage) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ExtractTimeout)
	defer cancel()

	run := st.Run
	workDir := filepath.Join(o.cfg.TempDir, run.CorrelationID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		st.FailErr = fmt.Errorf("create workdir: %w", err)
		return st, StageFailure
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input.mp4")
	if err := o.store.DownloadFile(ctx, run.InputKey, videoPath); err != nil {
		st.FailErr = fmt.Errorf("download video: %w", err)
		return st, StageFailure
	}

	result, err := o.extractor.ExtractFrames(ctx, videoPath, run)
	if err != nil {
		st.FailErr = fmt.Errorf("extract frames: %w", err)
		st.Permanent = errors.Is(err, entity.ErrUnreadableVideo)
		return st, StageFailure
	}

	run.TotalFrames = result.FrameCount
	if err := o.runs.Update(ctx, run); err != nil {
		st.FailErr = fmt.Errorf("persist frame count: %w", err)
		return st, StageFailure
	}

	metrics.FramesExtractedTotal.Add(float64(result.FrameCount))
	st.ManifestKey = result.ManifestKey
	st.Items = result.Items
	return st, StageFanOutProcess
}

// stageFanOutProcess runs one frame-processor branch per manifest item under
// the concurrency cap. fanOut returning is the barrier: every branch is
// terminal before the tolerance decision and the aggregate stage run.
func (o *Orchestrator) stageFanOutProcess(ctx context.Context, st runState) (runState, Stage) {
	run := st.Run
	outcome := fanOut(ctx, st.Items, o.cfg.MaxConcurrency, func(ctx context.Context, item entity.FrameWorkItem) error {
		ctx, cancel := context.WithTimeout(ctx, o.cfg.FrameTimeout)
		defer cancel()
		_, err := o.processor.Process(ctx, run, item)
		if err != nil {
			metrics.FramesProcessedTotal.WithLabelValues("failed").Inc()
			o.logger.Error("frame item failed",
				zap.String("correlation_id", run.CorrelationID),
				zap.String("raw_frame_key", item.RawFrameKey),
				zap.Error(err),
			)
			return err
		}
		metrics.FramesProcessedTotal.WithLabelValues("succeeded").Inc()
		return nil
	})

	if len(outcome.Failures) > o.cfg.FailureTolerance {
		st.FailErr = fmt.Errorf("fan-out: %d of %d frame items failed, tolerance is %d",
			len(outcome.Failures), len(st.Items), o.cfg.FailureTolerance)
		return st, StageFailure
	}

	missing := make([]string, 0, len(outcome.Failures))
	for _, failure := range outcome.Failures {
		missing = append(missing, entity.FrameTimeKey(failure.Item.FrameTime))
	}
	sort.Strings(missing)
	st.MissingFrames = missing
	return st, StageAggregate
}

func (o *Orchestrator) stageAggregate(ctx context.Context, st runState) (runState, Stage) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AggregateTimeout)
	defer cancel()

	expected := st.Run.TotalFrames - len(st.MissingFrames)
	manifest, err := o.aggregator.Aggregate(ctx, st.Run, expected, st.MissingFrames)
	if err != nil {
		st.FailErr = fmt.Errorf("aggregate results: %w", err)
		var mismatch *entity.AggregationMismatchError
		st.Permanent = errors.As(err, &mismatch)
		return st, StageFailure
	}

	st.Manifest = manifest
	return st, StageSuccess
}

func (o *Orchestrator) finishSuccess(ctx context.Context, st runState, totalTimer time.Time) {
	run := st.Run
	run.MarkCompleted(run.TotalFrames)
	if err := o.runs.Update(ctx, run); err != nil {
		o.logger.Error("failed to persist completed run", zap.Error(err),
			zap.String("correlation_id", run.CorrelationID))
	}

	o.publishStatus(ctx, run, st.Manifest.ArrangedResultsKey)
	metrics.RunsTotal.WithLabelValues("completed").Inc()

	o.logger.Info("run completed",
		zap.String("correlation_id", run.CorrelationID),
		zap.String("video_name", run.VideoName),
		zap.Int("total_frames", run.TotalFrames),
		zap.String("arranged_results_key", st.Manifest.ArrangedResultsKey),
		zap.Duration("elapsed", time.Since(totalTimer)),
	)
}

func (o *Orchestrator) finishFailure(ctx context.Context, st runState, rawMsg []byte) error {
	errMsg := "unknown failure"
	if st.FailErr != nil {
		errMsg = st.FailErr.Error()
	}
	metrics.RunsTotal.WithLabelValues("failed").Inc()

	if st.Run == nil {
		// The trigger never yielded a run identity; park it and move on.
		o.logger.Error("trigger rejected", zap.String("reason", errMsg))
		_ = o.dlq.PublishToDLQ(ctx, rawMsg, errMsg)
		return nil
	}

	run := st.Run
	run.MarkFailed(errMsg)
	if err := o.runs.Update(ctx, run); err != nil {
		o.logger.Error("failed to persist failed run", zap.Error(err),
			zap.String("correlation_id", run.CorrelationID))
	}
	o.publishStatus(ctx, run, "")

	if st.Permanent || !run.CanRetry() {
		_ = o.dlq.PublishToDLQ(ctx, rawMsg, errMsg)
		_ = o.notifier.NotifyFailure(ctx, run.CorrelationID, run.VideoName, errMsg)
		o.logger.Error("run permanently failed",
			zap.String("correlation_id", run.CorrelationID),
			zap.String("video_name", run.VideoName),
			zap.String("reason", errMsg),
		)
		return nil
	}

	return fmt.Errorf("run %s failed (attempt %d/%d): %s",
		run.CorrelationID, run.Attempt, run.MaxAttempts, errMsg)
}

func (o *Orchestrator) publishStatus(ctx context.Context, run *entity.VideoRun, arrangedResultsKey string) {
	statusMsg := entity.RunStatusMessage{
		CorrelationID:      run.CorrelationID,
		VideoName:          run.VideoName,
		Status:             run.Status,
		InputKey:           run.InputKey,
		ArrangedResultsKey: arrangedResultsKey,
		TotalFrames:        run.TotalFrames,
		ErrorMessage:       run.ErrorMessage,
		Attempt:            run.Attempt,
		MaxAttempts:        run.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := o.publisher.PublishStatus(ctx, data); err != nil {
		o.logger.Error("failed to publish status", zap.Error(err),
			zap.String("correlation_id", run.CorrelationID))
	}
}

// resolveRun reuses the identity of an in-flight run when the trigger is a
// redelivery, so the correlation id stays constant across retried
// invocations of the same logical run.
func (o *Orchestrator) resolveRun(ctx context.Context, msg entity.VideoUploadedMessage) *entity.VideoRun {
	if msg.CorrelationID != "" {
		if run, err := o.runs.FindByCorrelationID(ctx, msg.CorrelationID); err == nil {
			return run
		}
		return entity.NewVideoRun(msg.Bucket, msg.Key, msg.CorrelationID, o.cfg.RunMaxAttempts)
	}

	if run, err := o.runs.FindLatestByInputKey(ctx, msg.Bucket, msg.Key); err == nil {
		if run.Status != entity.RunStatusCompleted && run.CanRetry() {
			return run
		}
	}
	return entity.NewVideoRun(msg.Bucket, msg.Key, "", o.cfg.RunMaxAttempts)
}

func validateTrigger(msg entity.VideoUploadedMessage) error {
	if msg.Bucket == "" {
		return &entity.ValidationError{Field: "bucket", Reason: "missing"}
	}
	if msg.Key == "" {
		return &entity.ValidationError{Field: "key", Reason: "missing"}
	}
	if !strings.HasSuffix(msg.Key, ".mp4") {
		return &entity.ValidationError{Field: "key", Reason: "is not an mp4 object"}
	}
	return nil
}
