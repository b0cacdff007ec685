package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsrekognition "github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"go.uber.org/zap"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

// Client adapts the AWS Rekognition celebrity API to the recognizer port.
// The image never leaves the object store; Rekognition reads it by bucket
// and key.
type Client struct {
	api    *awsrekognition.Client
	logger *zap.Logger
}

func NewClient(cfg aws.Config, logger *zap.Logger) *Client {
	return &Client{api: awsrekognition.NewFromConfig(cfg), logger: logger}
}

func (c *Client) RecognizeCelebrities(ctx context.Context, bucket, key string) ([]entity.Detection, error) {
	out, err := c.api.RecognizeCelebrities(ctx, &awsrekognition.RecognizeCelebritiesInput{
		Image: &types.Image{
			S3Object: &types.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
	})
	if err != nil {
		if isMalformedInput(err) {
			return nil, fmt.Errorf("recognize celebrities %s/%s: %w", bucket, key, err)
		}
		return nil, entity.Transient("recognize_celebrities", err)
	}

	detections := make([]entity.Detection, 0, len(out.CelebrityFaces))
	for _, face := range out.CelebrityFaces {
		det := entity.Detection{
			Name:       aws.ToString(face.Name),
			Confidence: float64(aws.ToFloat32(face.MatchConfidence)),
			URLs:       face.Urls,
		}
		if face.Face != nil && face.Face.BoundingBox != nil {
			box := face.Face.BoundingBox
			det.BoundingBox = entity.BoundingBox{
				Left:   float64(aws.ToFloat32(box.Left)),
				Top:    float64(aws.ToFloat32(box.Top)),
				Width:  float64(aws.ToFloat32(box.Width)),
				Height: float64(aws.ToFloat32(box.Height)),
			}
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// isMalformedInput reports whether the call failed because of the image
// itself rather than a service condition; those failures never succeed on
// retry.
func isMalformedInput(err error) bool {
	var invalidImage *types.InvalidImageFormatException
	var invalidObject *types.InvalidS3ObjectException
	var tooLarge *types.ImageTooLargeException
	return errors.As(err, &invalidImage) ||
		errors.As(err, &invalidObject) ||
		errors.As(err, &tooLarge)
}
