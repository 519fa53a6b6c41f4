package alerts

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/notify"
	"github.com/retailcore/till-service/internal/queue"
	"github.com/retailcore/till-service/pkg/logger"
)

// AlertProcessor delivers one queued variance alert to a webhook receiver
// with idempotency guarantees keyed on the event id.
type AlertProcessor struct {
	client      *notify.Client
	idempotency *IdempotencyService
}

func NewAlertProcessor(client *notify.Client, idempotency *IdempotencyService) *AlertProcessor {
	return &AlertProcessor{
		client:      client,
		idempotency: idempotency,
	}
}

func (p *AlertProcessor) GetType() string {
	return "variance-alert"
}

func (p *AlertProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var alert model.VarianceAlert
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		logger.Error("alert payload unmarshal failed", "message_id", msg.ID, "error", err)
		return err
	}
	if alert.EventID == "" {
		logger.Error("alert without event id dropped", "message_id", msg.ID)
		return errors.New("alert event id is required")
	}

	dc, err := p.idempotency.AcquireLock(ctx, alert.EventID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyDelivered):
			// already went out; ack so the stream entry goes away
			return nil
		case errors.Is(err, ErrMaxRetriesExceeded):
			logger.Error("alert gave up after max retries", "event_id", alert.EventID)
			return nil
		case errors.Is(err, ErrLockAcquireFailed):
			return errors.New("delivery lock held by another consumer")
		default:
			return err
		}
	}

	receipt, err := p.client.Deliver(ctx, alert)
	if err != nil {
		p.idempotency.MarkFailed(ctx, dc, err)
		return err
	}

	if err := p.idempotency.MarkDelivered(ctx, dc); err != nil {
		// delivery succeeded; a failed marker write only risks a
		// duplicate, which the receiver dedupes on event id
		logger.Warn("delivered marker write failed", "event_id", alert.EventID, "error", err)
	}

	logger.Info("variance alert delivered",
		"event_id", alert.EventID,
		"variance_id", alert.VarianceID,
		"branch", alert.BranchID,
		"endpoint", receipt.Endpoint,
		"retry", dc.IsRetry)
	return nil
}
