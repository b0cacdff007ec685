package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVideoRunDerivesIdentity(t *testing.T) {
	run := NewVideoRun("media", "videos/concert.mp4", "", 3)

	assert.Equal(t, "concert", run.VideoName)
	assert.Equal(t, "concert", run.OutputPrefix)
	assert.Equal(t, "media", run.Bucket)
	assert.Equal(t, "videos/concert.mp4", run.InputKey)
	assert.NotEmpty(t, run.CorrelationID, "a correlation id must be minted when the trigger has none")
	assert.Equal(t, RunStatusPending, run.Status)
}

func TestNewVideoRunKeepsSuppliedCorrelationID(t *testing.T) {
	run := NewVideoRun("media", "videos/concert.mp4", "corr-123", 3)
	assert.Equal(t, "corr-123", run.CorrelationID)
}

func TestRunLifecycle(t *testing.T) {
	run := NewVideoRun("media", "videos/concert.mp4", "", 2)

	require.True(t, run.CanRetry())
	run.MarkProcessing()
	assert.Equal(t, RunStatusProcessing, run.Status)
	assert.Equal(t, 1, run.Attempt)

	run.MarkFailed("extract frames: boom")
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.True(t, run.CanRetry(), "one attempt of two used")

	run.MarkProcessing()
	assert.Equal(t, 2, run.Attempt)
	assert.False(t, run.CanRetry())

	run.MarkCompleted(10)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 10, run.TotalFrames)
	require.NotNil(t, run.CompletedAt)
}
