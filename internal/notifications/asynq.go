package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/hibiken/asynq"
)

// Task types and queue for background delivery.
const (
	TypePaymentReceived = "records:payment_received"
	QueueNotifications  = "notifications"
)

// NewAsynqClient creates a task client on the same Redis the publisher uses.
func NewAsynqClient(addr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewPaymentReceivedTask wraps one event as a task. The task id is derived from the record,
// slot and detection time so a re-enqueue of the same event is rejected by asynq.
func NewPaymentReceivedTask(event domain.PaymentEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment event: %w", err)
	}
	taskID := fmt.Sprintf("%s:%s:%d:%s", TypePaymentReceived, event.RecordID, event.Slot, event.DetectedAt)
	return asynq.NewTask(TypePaymentReceived, payload,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.TaskID(taskID),
	), nil
}

// ParsePaymentReceivedTask decodes a task payload on the consumer side. A malformed
// payload is wrapped with asynq.SkipRetry since retrying cannot fix it.
func ParsePaymentReceivedTask(t *asynq.Task) (domain.PaymentEvent, error) {
	var event domain.PaymentEvent
	if t.Type() != TypePaymentReceived {
		return event, fmt.Errorf("unexpected task type %q: %w", t.Type(), asynq.SkipRetry)
	}
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return event, fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return event, nil
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqPublisher enqueues one background task per event.
type AsynqPublisher struct {
	client TaskEnqueuer
}

var _ portssvc.NotificationPublisher = (*AsynqPublisher)(nil)

// NewAsynqPublisher creates a publisher on top of an asynq client.
func NewAsynqPublisher(client TaskEnqueuer) *AsynqPublisher {
	return &AsynqPublisher{client: client}
}

func (p *AsynqPublisher) Publish(ctx context.Context, events []domain.PaymentEvent) error {
	var errs []error
	for _, e := range events {
		task, err := NewPaymentReceivedTask(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := p.client.EnqueueContext(ctx, task); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			errs = append(errs, fmt.Errorf("failed to enqueue %s for record %s: %w", TypePaymentReceived, e.RecordID, err))
		}
	}
	return errors.Join(errs...)
}
