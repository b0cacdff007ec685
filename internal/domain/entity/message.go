package entity

// VideoUploadedMessage is the inbound "object created" notification consumed
// from the video.uploaded queue. Bucket and Key are mandatory; the
// correlation id is optional and minted at Ingest when absent.
type VideoUploadedMessage struct {
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// RunStatusMessage is the outbound message published to the video.status
// queue whenever a run reaches a terminal state.
type RunStatusMessage struct {
	CorrelationID      string    `json:"correlation_id"`
	VideoName          string    `json:"video_name"`
	Status             RunStatus `json:"status"`
	InputKey           string    `json:"input_key"`
	ArrangedResultsKey string    `json:"arranged_results_key,omitempty"`
	TotalFrames        int       `json:"total_frames,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	Attempt            int       `json:"attempt"`
	MaxAttempts        int       `json:"max_attempts"`
}
