package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, correlationID string, videoName string, errorMsg string) error
}
