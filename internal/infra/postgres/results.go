package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

// FrameResultStore keeps one row per (video_name, frame_time). The composite
// primary key plus ON CONFLICT upsert gives the idempotent-write semantics
// the frame processor relies on when it retries.
type FrameResultStore struct {
	pool *pgxpool.Pool
}

func NewFrameResultStore(pool *pgxpool.Pool) *FrameResultStore {
	return &FrameResultStore{pool: pool}
}

func (s *FrameResultStore) Save(ctx context.Context, result *entity.FrameResult) error {
	detections, err := json.Marshal(result.Detections)
	if err != nil {
		return fmt.Errorf("marshal detections: %w", err)
	}

	query := `
		INSERT INTO frame_results (
			video_name, frame_time, correlation_id, raw_image_key,
			processed_image_key, detections, celebrity_count, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (video_name, frame_time) DO UPDATE SET
			correlation_id=EXCLUDED.correlation_id,
			raw_image_key=EXCLUDED.raw_image_key,
			processed_image_key=EXCLUDED.processed_image_key,
			detections=EXCLUDED.detections,
			celebrity_count=EXCLUDED.celebrity_count,
			updated_at=now()`

	_, err = s.pool.Exec(ctx, query,
		result.VideoName, result.FrameTime, result.CorrelationID,
		result.RawImageKey, result.ProcessedImageKey,
		detections, result.CelebrityCount,
	)
	if err != nil {
		return fmt.Errorf("upsert frame result: %w", err)
	}
	return nil
}

func (s *FrameResultStore) Get(ctx context.Context, videoName, frameTime string) (*entity.FrameResult, error) {
	query := `
		SELECT video_name, frame_time, correlation_id, raw_image_key,
			processed_image_key, detections, celebrity_count
		FROM frame_results WHERE video_name=$1 AND frame_time=$2`

	result, err := scanFrameResult(s.pool.QueryRow(ctx, query, videoName, frameTime))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("frame result %s/%s not found: %w", videoName, frameTime, err)
		}
		return nil, fmt.Errorf("get frame result: %w", err)
	}
	return result, nil
}

func (s *FrameResultStore) QueryByVideo(ctx context.Context, videoName string) ([]entity.FrameResult, error) {
	query := `
		SELECT video_name, frame_time, correlation_id, raw_image_key,
			processed_image_key, detections, celebrity_count
		FROM frame_results WHERE video_name=$1 ORDER BY frame_time ASC`

	rows, err := s.pool.Query(ctx, query, videoName)
	if err != nil {
		return nil, fmt.Errorf("query frame results: %w", err)
	}
	defer rows.Close()

	var results []entity.FrameResult
	for rows.Next() {
		result, err := scanFrameResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan frame result: %w", err)
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frame results: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFrameResult(row rowScanner) (*entity.FrameResult, error) {
	result := &entity.FrameResult{}
	var detections []byte
	err := row.Scan(
		&result.VideoName, &result.FrameTime, &result.CorrelationID,
		&result.RawImageKey, &result.ProcessedImageKey,
		&detections, &result.CelebrityCount,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(detections, &result.Detections); err != nil {
		return nil, fmt.Errorf("unmarshal detections: %w", err)
	}
	return result, nil
}
