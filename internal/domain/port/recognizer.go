package port

import (
	"context"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

// CelebrityRecognizer runs the external recognition capability against an
// object already stored in the bucket; no image data crosses this interface.
type CelebrityRecognizer interface {
	RecognizeCelebrities(ctx context.Context, bucket, key string) ([]entity.Detection, error)
}
