package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *entity.VideoRun) error {
	query := `
		INSERT INTO processing_runs (
			correlation_id, video_name, bucket, input_key, output_prefix,
			total_frames, status, attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err := r.pool.Exec(ctx, query,
		run.CorrelationID, run.VideoName, run.Bucket, run.InputKey, run.OutputPrefix,
		run.TotalFrames, string(run.Status), run.Attempt, run.MaxAttempts,
		run.ErrorMessage, run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *entity.VideoRun) error {
	query := `
		UPDATE processing_runs SET
			total_frames=$2, status=$3, attempt=$4, error_message=$5,
			updated_at=$6, completed_at=$7
		WHERE correlation_id=$1`

	_, err := r.pool.Exec(ctx, query,
		run.CorrelationID, run.TotalFrames, string(run.Status),
		run.Attempt, run.ErrorMessage, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (r *RunRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*entity.VideoRun, error) {
	query := `
		SELECT correlation_id, video_name, bucket, input_key, output_prefix,
			total_frames, status, attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		FROM processing_runs WHERE correlation_id=$1`

	run, err := r.scanRun(r.pool.QueryRow(ctx, query, correlationID))
	if err != nil {
		return nil, fmt.Errorf("find run by correlation id: %w", err)
	}
	return run, nil
}

func (r *RunRepository) FindLatestByInputKey(ctx context.Context, bucket, inputKey string) (*entity.VideoRun, error) {
	query := `
		SELECT correlation_id, video_name, bucket, input_key, output_prefix,
			total_frames, status, attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		FROM processing_runs WHERE bucket=$1 AND input_key=$2
		ORDER BY created_at DESC LIMIT 1`

	run, err := r.scanRun(r.pool.QueryRow(ctx, query, bucket, inputKey))
	if err != nil {
		return nil, fmt.Errorf("find run by input key: %w", err)
	}
	return run, nil
}

func (r *RunRepository) scanRun(row rowScanner) (*entity.VideoRun, error) {
	run := &entity.VideoRun{}
	var status string
	err := row.Scan(
		&run.CorrelationID, &run.VideoName, &run.Bucket, &run.InputKey, &run.OutputPrefix,
		&run.TotalFrames, &status, &run.Attempt, &run.MaxAttempts, &run.ErrorMessage,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = entity.RunStatus(status)
	return run, nil
}
