package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/SscSPs/client_records_app/internal/middleware"
	"github.com/hibiken/asynq"
)

// PaymentTaskProcessor consumes payment_received tasks and hands each event to deliver.
type PaymentTaskProcessor struct {
	deliver portssvc.NotificationPublisher
}

// NewPaymentTaskProcessor creates a processor that forwards events to deliver.
func NewPaymentTaskProcessor(deliver portssvc.NotificationPublisher) *PaymentTaskProcessor {
	return &PaymentTaskProcessor{deliver: deliver}
}

// HandlePaymentReceivedTask delivers one event. Delivery errors are returned so asynq retries the task.
func (p *PaymentTaskProcessor) HandlePaymentReceivedTask(ctx context.Context, t *asynq.Task) error {
	event, err := ParsePaymentReceivedTask(t)
	if err != nil {
		return err
	}
	logger := middleware.GetLoggerFromCtx(ctx).With(
		slog.String("record_id", event.RecordID),
		slog.Int("slot", event.Slot),
	)
	if err := p.deliver.Publish(middleware.WithLogger(ctx, logger), []domain.PaymentEvent{event}); err != nil {
		logger.Warn("Payment event delivery failed", slog.String("error", err.Error()))
		return fmt.Errorf("deliver payment event: %w", err)
	}
	logger.Debug("Payment event delivered")
	return nil
}

// NewWorkerMux routes task types to the processor.
func NewWorkerMux(p *PaymentTaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePaymentReceived, p.HandlePaymentReceivedTask)
	return mux
}

// NewWorkerServer creates an asynq server that only consumes the notifications queue.
func NewWorkerServer(addr, password string, db, concurrency int, logger *slog.Logger) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: addr, Password: password, DB: db},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{QueueNotifications: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Notification task failed",
					slog.String("type", task.Type()),
					slog.String("error", err.Error()))
			}),
		},
	)
}
