package alerts

import (
	"context"
	"fmt"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/queue"
)

// QueuePublisher puts variance alerts on the redis stream the delivery
// service consumes. It satisfies the service layer's AlertPublisher.
type QueuePublisher struct {
	q *queue.Queue
}

func NewQueuePublisher(q *queue.Queue) *QueuePublisher {
	return &QueuePublisher{q: q}
}

func (p *QueuePublisher) PublishAlert(ctx context.Context, alert model.VarianceAlert) error {
	_, err := p.q.PublishJSON(ctx, alert, map[string]string{
		"event_id": alert.EventID,
		"branch":   alert.BranchID,
	})
	if err != nil {
		return fmt.Errorf("publish variance alert: %w", err)
	}
	return nil
}
