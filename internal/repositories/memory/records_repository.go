// Package memory provides in-process records repositories used by tests and by
// deployments that run without a database.
package memory

import (
	"context"
	"sync"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
)

// RecordsRepository keeps one representation of the collection in memory.
// Each call holds the lock for its whole check-and-set, so it behaves like a transaction.
type RecordsRepository struct {
	mu        sync.Mutex
	source    domain.RecordsSource
	records   []domain.ClientRecord
	updatedAt string

	readErr  error
	writeErr error
	writes   int
}

var _ portsrepo.RecordsRepositoryFacade = (*RecordsRepository)(nil)

// NewRecordsRepository creates an empty repository labelled with source.
func NewRecordsRepository(source domain.RecordsSource) *RecordsRepository {
	return &RecordsRepository{source: source}
}

// Source reports which representation this repository plays.
func (r *RecordsRepository) Source() domain.RecordsSource {
	return r.source
}

// Seed replaces the stored state without any checks.
func (r *RecordsRepository) Seed(records []domain.ClientRecord, updatedAt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = cloneRecords(records)
	r.updatedAt = updatedAt
}

// FailReads makes every subsequent load return err. Pass nil to recover.
func (r *RecordsRepository) FailReads(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readErr = err
}

// FailWrites makes every subsequent write return err. Pass nil to recover.
func (r *RecordsRepository) FailWrites(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeErr = err
}

// Writes counts committed writes.
func (r *RecordsRepository) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func (r *RecordsRepository) LoadRecords(ctx context.Context) (*domain.RecordsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewUnavailableError("records load cancelled", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	return &domain.RecordsSnapshot{
		Records:   cloneRecords(r.records),
		UpdatedAt: r.updatedAt,
		Source:    r.source,
	}, nil
}

func (r *RecordsRepository) ReplaceRecords(ctx context.Context, records []domain.ClientRecord, expected, next string) error {
	return r.commit(ctx, expected, next, func(_ []domain.ClientRecord) []domain.ClientRecord {
		return records
	})
}

func (r *RecordsRepository) ApplyPatch(ctx context.Context, ops []domain.PatchOperation, expected, next string) error {
	return r.commit(ctx, expected, next, func(current []domain.ClientRecord) []domain.ClientRecord {
		return domain.ApplyPatchOperations(current, ops)
	})
}

func (r *RecordsRepository) OverwriteRecords(ctx context.Context, records []domain.ClientRecord, stamp string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewUnavailableError("records write cancelled", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.records = cloneRecords(records)
	r.updatedAt = stamp
	r.writes++
	return nil
}

func (r *RecordsRepository) commit(ctx context.Context, expected, next string, mutate func([]domain.ClientRecord) []domain.ClientRecord) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewUnavailableError("records write cancelled", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	if r.updatedAt != expected {
		return apperrors.NewConflictError(expected, r.updatedAt)
	}
	r.records = cloneRecords(mutate(r.records))
	r.updatedAt = next
	r.writes++
	return nil
}

func cloneRecords(records []domain.ClientRecord) []domain.ClientRecord {
	out := make([]domain.ClientRecord, len(records))
	copy(out, records)
	return out
}
