package services

import (
	"context"

	"github.com/SscSPs/client_records_app/internal/core/domain"
)

// RecordsReaderSvc serves the shared collection.
type RecordsReaderSvc interface {
	GetRecords(ctx context.Context) (*domain.RecordsSnapshot, error)
}

// RecordsWriterSvc accepts precondition-checked writes.
type RecordsWriterSvc interface {
	// ReplaceRecords validates raw (decoded JSON) and replaces the whole collection.
	ReplaceRecords(ctx context.Context, raw any, precondition domain.Precondition) (string, error)
	// PatchRecords validates and applies a batch atomically.
	PatchRecords(ctx context.Context, ops []domain.RawPatchOperation, precondition domain.Precondition) (*domain.PatchResult, error)
}

// RecordsSvcFacade combines read and write access to the records store.
type RecordsSvcFacade interface {
	RecordsReaderSvc
	RecordsWriterSvc
}

// NotificationPublisher hands payment events to the delivery side channel.
// Callers treat it as fire-and-forget: errors are logged, never surfaced.
type NotificationPublisher interface {
	Publish(ctx context.Context, events []domain.PaymentEvent) error
}
