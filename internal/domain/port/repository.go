package port

import (
	"context"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

type RunRepository interface {
	Create(ctx context.Context, run *entity.VideoRun) error
	Update(ctx context.Context, run *entity.VideoRun) error
	FindByCorrelationID(ctx context.Context, correlationID string) (*entity.VideoRun, error)
	// FindLatestByInputKey returns the most recent run for an input object,
	// so a redelivered trigger without a correlation id resumes the same
	// logical run instead of minting a new identity.
	FindLatestByInputKey(ctx context.Context, bucket, inputKey string) (*entity.VideoRun, error)
}
