package port

import "github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"

// Annotator is a pure transform: image bytes plus detections in, annotated
// image bytes out. With zero detections the input is returned unchanged, and
// the detections slice is never mutated.
type Annotator interface {
	Annotate(image []byte, detections []entity.Detection) ([]byte, error)
}
