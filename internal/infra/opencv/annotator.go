package opencv

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

// Annotator draws detection boxes and labels onto JPEG frames. It is a pure
// transform over the input bytes; detections are read, never written.
type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

func (a *Annotator) Annotate(img []byte, detections []entity.Detection) ([]byte, error) {
	if len(detections) == 0 {
		return img, nil
	}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("decode image: empty result")
	}

	imgWidth := float64(mat.Cols())
	imgHeight := float64(mat.Rows())
	red := color.RGBA{R: 255}

	for _, det := range detections {
		box := det.BoundingBox
		left := int(box.Left * imgWidth)
		top := int(box.Top * imgHeight)
		width := int(box.Width * imgWidth)
		height := int(box.Height * imgHeight)

		rect := image.Rect(left, top, left+width, top+height)
		if err := gocv.Rectangle(&mat, rect, red, 5); err != nil {
			return nil, fmt.Errorf("draw box for %s: %w", det.Name, err)
		}

		// Label anchored at the bottom-left corner of the box.
		anchor := image.Pt(left, top+height+24)
		if err := gocv.PutText(&mat, det.Name, anchor, gocv.FontHersheySimplex, 0.8, red, 2); err != nil {
			return nil, fmt.Errorf("draw label for %s: %w", det.Name, err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	out := append([]byte(nil), buf.GetBytes()...)
	buf.Close()
	return out, nil
}
