package opencv

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
	"github.com/videoxray/videoxray-pipeline-service/internal/domain/port"
)

// Extractor samples a video by seeking to successive frame indices spaced by
// intervalSecs worth of native frames. Each sampled frame is uploaded as a
// JPEG under {prefix}/raw/{frame_time}.jpg; keys are deterministic so a
// retried extraction overwrites its own output.
type Extractor struct {
	store        port.ObjectStore
	intervalSecs int
	logger       *zap.Logger
}

func NewExtractor(store port.ObjectStore, intervalSecs int, logger *zap.Logger) *Extractor {
	if intervalSecs <= 0 {
		intervalSecs = 1
	}
	return &Extractor{store: store, intervalSecs: intervalSecs, logger: logger}
}

func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, run *entity.VideoRun) (*port.FrameExtractionResult, error) {
	capture, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", entity.ErrUnreadableVideo, videoPath, err)
	}
	defer capture.Close()

	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		return nil, fmt.Errorf("%w: %s reports frame rate %f", entity.ErrUnreadableVideo, videoPath, fps)
	}
	step := fps * float64(e.intervalSecs)

	frame := gocv.NewMat()
	defer frame.Close()

	var items []entity.FrameWorkItem
	for frameIndex := 0.0; ; frameIndex += step {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		capture.Set(gocv.VideoCapturePosFrames, frameIndex)
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			// End of stream is normal termination, not an error.
			break
		}

		frameTime := int(frameIndex / fps)
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
		if err != nil {
			return nil, fmt.Errorf("encode frame at %ds: %w", frameTime, err)
		}
		data := append([]byte(nil), buf.GetBytes()...)
		buf.Close()

		key := path.Join(run.OutputPrefix, "raw", entity.FrameTimeKey(frameTime)+".jpg")
		if err := e.store.Put(ctx, key, data, "image/jpeg"); err != nil {
			return nil, fmt.Errorf("upload frame %s: %w", key, err)
		}

		items = append(items, entity.FrameWorkItem{
			VideoName:   run.VideoName,
			FrameTime:   frameTime,
			RawFrameKey: key,
		})
	}

	manifest := entity.WorkManifest{VideoName: run.VideoName, Items: items}
	manifestKey := path.Join(run.OutputPrefix, "maps", "00_distributed_map.json")
	if err := e.store.PutJSON(ctx, manifestKey, manifest); err != nil {
		return nil, fmt.Errorf("write work manifest %s: %w", manifestKey, err)
	}

	e.logger.Info("frames extracted",
		zap.String("correlation_id", run.CorrelationID),
		zap.String("video_name", run.VideoName),
		zap.Int("frame_count", len(items)),
		zap.Float64("native_fps", fps),
	)

	return &port.FrameExtractionResult{
		ManifestKey: manifestKey,
		FrameCount:  len(items),
		Items:       items,
	}, nil
}
