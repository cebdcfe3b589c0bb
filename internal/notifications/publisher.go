// Package notifications delivers payment events detected by the records store.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/SscSPs/client_records_app/internal/middleware"
)

// CompositePublisher fans events out to several publishers.
type CompositePublisher struct {
	publishers []portssvc.NotificationPublisher
}

var _ portssvc.NotificationPublisher = (*CompositePublisher)(nil)

// NewCompositePublisher creates a CompositePublisher. Nil publishers are skipped.
func NewCompositePublisher(publishers ...portssvc.NotificationPublisher) *CompositePublisher {
	cp := &CompositePublisher{}
	for _, p := range publishers {
		cp.Add(p)
	}
	return cp
}

// Add registers another publisher.
func (cp *CompositePublisher) Add(p portssvc.NotificationPublisher) {
	if p != nil {
		cp.publishers = append(cp.publishers, p)
	}
}

// Len reports how many publishers are registered.
func (cp *CompositePublisher) Len() int {
	return len(cp.publishers)
}

// Publish calls every publisher, even after a failure, and joins the errors.
func (cp *CompositePublisher) Publish(ctx context.Context, events []domain.PaymentEvent) error {
	if len(cp.publishers) == 0 {
		return fmt.Errorf("no notification publishers configured")
	}
	var errs []error
	for _, p := range cp.publishers {
		if err := p.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the request logger. Useful in development and as an audit trail.
type LogPublisher struct{}

var _ portssvc.NotificationPublisher = LogPublisher{}

func (LogPublisher) Publish(ctx context.Context, events []domain.PaymentEvent) error {
	logger := middleware.GetLoggerFromCtx(ctx)
	for _, e := range events {
		logger.Info("Payment received",
			slog.String("record_id", e.RecordID),
			slog.String("client_name", e.ClientName),
			slog.Int("slot", e.Slot),
			slog.String("amount", e.Amount),
			slog.String("payment_date", e.PaymentDate),
			slog.String("link", e.Link))
	}
	return nil
}
