package port

import (
	"context"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

// ResultStore is the per-frame record side of the pipeline's shared state.
// Save must be an idempotent upsert keyed by (video name, frame time);
// QueryByVideo returns records ordered ascending by frame time.
type ResultStore interface {
	Save(ctx context.Context, result *entity.FrameResult) error
	Get(ctx context.Context, videoName, frameTime string) (*entity.FrameResult, error)
	QueryByVideo(ctx context.Context, videoName string) ([]entity.FrameResult, error)
}
