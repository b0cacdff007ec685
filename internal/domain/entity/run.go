package entity

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
)

// VideoRun is the job-context for one logical pipeline run. It is created at
// Ingest and owned by the orchestrator; TotalFrames is set once extraction
// completes, everything else stays fixed for the lifetime of the run.
type VideoRun struct {
	CorrelationID string
	VideoName     string
	Bucket        string
	InputKey      string
	OutputPrefix  string
	TotalFrames   int
	Status        RunStatus
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// NewVideoRun derives the run identity from the triggering object notification.
// An empty correlationID is replaced with a freshly generated one; once set it
// never changes for this logical run, including across redeliveries.
func NewVideoRun(bucket, inputKey, correlationID string, maxAttempts int) *VideoRun {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	videoName := strings.TrimSuffix(path.Base(inputKey), path.Ext(inputKey))
	now := time.Now().UTC()
	return &VideoRun{
		CorrelationID: correlationID,
		VideoName:     videoName,
		Bucket:        bucket,
		InputKey:      inputKey,
		OutputPrefix:  videoName,
		Status:        RunStatusPending,
		Attempt:       0,
		MaxAttempts:   maxAttempts,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *VideoRun) MarkProcessing() {
	r.Status = RunStatusProcessing
	r.Attempt++
	r.UpdatedAt = time.Now().UTC()
}

func (r *VideoRun) MarkCompleted(totalFrames int) {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.TotalFrames = totalFrames
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *VideoRun) MarkFailed(errMsg string) {
	r.Status = RunStatusFailed
	r.ErrorMessage = errMsg
	r.UpdatedAt = time.Now().UTC()
}

func (r *VideoRun) CanRetry() bool {
	return r.Attempt < r.MaxAttempts
}
