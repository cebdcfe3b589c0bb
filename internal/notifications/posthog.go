package notifications

import (
	"context"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
)

// analyticsDistinctID attributes server-detected events to the backend rather than a user.
const analyticsDistinctID = "records-backend"

type eventCapturer interface {
	IsInitialized() bool
	Enqueue(distinctID string, event string, properties map[string]any)
}

// PosthogPublisher records payment events as product analytics.
type PosthogPublisher struct {
	client eventCapturer
}

var _ portssvc.NotificationPublisher = (*PosthogPublisher)(nil)

// NewPosthogPublisher creates a publisher on top of the PostHog client wrapper.
func NewPosthogPublisher(client eventCapturer) *PosthogPublisher {
	return &PosthogPublisher{client: client}
}

func (p *PosthogPublisher) Publish(_ context.Context, events []domain.PaymentEvent) error {
	if p.client == nil || !p.client.IsInitialized() {
		return nil
	}
	for _, e := range events {
		p.client.Enqueue(analyticsDistinctID, string(e.Type), map[string]any{
			"record_id":    e.RecordID,
			"slot":         e.Slot,
			"amount":       e.Amount,
			"payment_date": e.PaymentDate,
			"detected_at":  e.DetectedAt,
		})
	}
	return nil
}
