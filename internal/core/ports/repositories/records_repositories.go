package repositories

import (
	"context"

	"github.com/SscSPs/client_records_app/internal/core/domain"
)

// RecordsReader loads the active collection from one storage representation.
type RecordsReader interface {
	// LoadRecords returns the collection and its stamp. An empty UpdatedAt means it was never written.
	LoadRecords(ctx context.Context) (*domain.RecordsSnapshot, error)
}

// RecordsWriter commits changes inside the representation's own transaction.
// expected is the stamp the caller read ("" means the collection must not exist yet);
// a mismatch at commit time returns an error matching apperrors.ErrConflict.
type RecordsWriter interface {
	ReplaceRecords(ctx context.Context, records []domain.ClientRecord, expected, next string) error
	ApplyPatch(ctx context.Context, ops []domain.PatchOperation, expected, next string) error
}

// RecordsMirror writes unconditionally. Used for shadow writes and backfills.
type RecordsMirror interface {
	OverwriteRecords(ctx context.Context, records []domain.ClientRecord, stamp string) error
}

// RecordsRepositoryFacade is everything the records store needs from one representation.
type RecordsRepositoryFacade interface {
	RecordsReader
	RecordsWriter
	RecordsMirror
	Source() domain.RecordsSource
}
