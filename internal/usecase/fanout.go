package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/metrics"
)

type itemFailure struct {
	Item entity.FrameWorkItem
	Err  error
}

type fanOutOutcome struct {
	Succeeded int
	Failures  []itemFailure
}

// fanOut executes fn once per manifest item with at most limit branches in
// flight and returns only after every branch has reached a terminal state.
// That return is the synchronization barrier the aggregate stage depends on.
// Failures are collected rather than propagated so one bad frame cannot
// cancel its siblings; items share no mutable state, so no further
// coordination is needed.
func fanOut(ctx context.Context, items []entity.FrameWorkItem, limit int, fn func(context.Context, entity.FrameWorkItem) error) fanOutOutcome {
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	var outcome fanOutOutcome

	for _, item := range items {
		g.Go(func() error {
			metrics.ActiveFrameWorkers.Inc()
			defer metrics.ActiveFrameWorkers.Dec()

			err := ctx.Err()
			if err == nil {
				err = fn(ctx, item)
			}

			mu.Lock()
			if err != nil {
				outcome.Failures = append(outcome.Failures, itemFailure{Item: item, Err: err})
			} else {
				outcome.Succeeded++
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return outcome
}
