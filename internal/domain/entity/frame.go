package entity

import "fmt"

// FrameTimeKey renders an integer-second offset as a zero-padded 5-digit
// string. Padding keeps lexicographic order equal to chronological order for
// videos up to 99999 seconds.
func FrameTimeKey(seconds int) string {
	return fmt.Sprintf("%05d", seconds)
}

// BoundingBox coordinates are fractions of the image dimensions (0..1).
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Detection struct {
	Name        string      `json:"name"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
	URLs        []string    `json:"urls,omitempty"`
}

// FrameWorkItem is one unit of fan-out work. It exists only as an entry in
// the work manifest; it has no persistence of its own.
type FrameWorkItem struct {
	VideoName   string `json:"video_name"`
	FrameTime   int    `json:"frame_time"`
	RawFrameKey string `json:"raw_frame_key"`
}

// WorkManifest is the static list of items driving one fan-out stage.
type WorkManifest struct {
	VideoName string          `json:"video_name"`
	Items     []FrameWorkItem `json:"items"`
}

// FrameResult is the per-frame record written by the frame processor. The
// write is an idempotent upsert keyed by (VideoName, FrameTime) so retries
// overwrite rather than duplicate.
type FrameResult struct {
	VideoName         string      `json:"video_name"`
	FrameTime         string      `json:"frame_time"`
	CorrelationID     string      `json:"correlation_id"`
	RawImageKey       string      `json:"raw_image_key"`
	ProcessedImageKey string      `json:"processed_image_key"`
	Detections        []Detection `json:"detections"`
	CelebrityCount    int         `json:"celebrity_count"`
}

// AggregatedManifest is the consolidated output of one run, ordered
// ascending by frame time. Partial is set only when the configured fan-out
// failure tolerance allowed some frames to be missing; a partial manifest is
// never emitted unmarked.
type AggregatedManifest struct {
	VideoName          string        `json:"video_name"`
	CorrelationID      string        `json:"correlation_id"`
	ArrangedResultsKey string        `json:"arranged_results_key"`
	FrameResults       []FrameResult `json:"frame_results"`
	Partial            bool          `json:"partial,omitempty"`
	MissingFrames      []string      `json:"missing_frames,omitempty"`
}
