package collector

import (
	"context"

	"tradeforge-core/pkg/kafka"
)

// AsHandler adapts Worker.Handle's (remaining, error) contract onto the
// platform consumer's Handler[T] signature: when Handle reports more pages
// outstanding, the same task is republished verbatim (same key, same
// correlation id, carried via ctx) before returning, turning a paginated
// crawl into self-scheduling without blocking other tickers' messages.
func (w *Worker) AsHandler(tasks TaskPublisher) func(ctx context.Context, task kafka.CollectorTask, correlationID string) error {
	return func(ctx context.Context, task kafka.CollectorTask, correlationID string) error {
		remaining, err := w.Handle(ctx, task, correlationID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			key := task.Ticker + ":" + task.TaskType
			return tasks.Publish(ctx, key, task)
		}
		return nil
	}
}
