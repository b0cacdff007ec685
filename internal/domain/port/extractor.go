package port

import (
	"context"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

type FrameExtractionResult struct {
	ManifestKey string
	FrameCount  int
	Items       []entity.FrameWorkItem
}

// FrameExtractor decodes a local video file, samples frames at the configured
// interval, persists each frame to the object store under the run's output
// prefix and writes the resulting work manifest.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, run *entity.VideoRun) (*FrameExtractionResult, error)
}
