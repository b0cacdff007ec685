package port

import "context"

// ObjectStore is the media/manifest side of the pipeline's shared state.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PutJSON(ctx context.Context, key string, v any) error
	DownloadFile(ctx context.Context, key string, destPath string) error
}
