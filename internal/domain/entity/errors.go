package entity

import (
	"errors"
	"fmt"
)

// ValidationError marks a malformed triggering event. It is fatal and
// non-retryable; the orchestrator drives the run straight to Failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid trigger: %s %s", e.Field, e.Reason)
}

// TransientError marks a failed call to an external collaborator that is
// worth retrying (recognition throttling, store hiccups). Anything not
// wrapped in it is treated as permanent.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so the retry loop in the frame processor picks it up.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrUnreadableVideo marks a corrupt or undecodable input video. Fail fast:
// no amount of retrying makes the bytes decodable.
var ErrUnreadableVideo = errors.New("unreadable video input")

// AggregationMismatchError is raised when fewer frame results exist than the
// fan-out stage was expected to produce. Fatal for the run; the aggregator
// never emits a silently-partial manifest.
type AggregationMismatchError struct {
	VideoName string
	Expected  int
	Got       int
}

func (e *AggregationMismatchError) Error() string {
	return fmt.Sprintf("aggregation mismatch for %s: expected %d frame results, got %d",
		e.VideoName, e.Expected, e.Got)
}
