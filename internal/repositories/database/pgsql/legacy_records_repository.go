package pgsql

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The legacy representation keeps the whole collection as one JSON blob in a singleton row.
const legacyStateID = 1

type PgxLegacyRecordsRepository struct {
	BaseRepository
}

// NewLegacyRecordsRepository creates the single-blob records repository.
func NewLegacyRecordsRepository(pool *pgxpool.Pool) portsrepo.RecordsRepositoryFacade {
	return &PgxLegacyRecordsRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.RecordsRepositoryFacade = (*PgxLegacyRecordsRepository)(nil)

func (r *PgxLegacyRecordsRepository) Source() domain.RecordsSource {
	return domain.SourceLegacy
}

func (r *PgxLegacyRecordsRepository) LoadRecords(ctx context.Context) (*domain.RecordsSnapshot, error) {
	query := `SELECT payload, updated_at FROM client_records_legacy_state WHERE id = $1;`
	records, updatedAt, err := scanLegacyState(r.Pool.QueryRow(ctx, query, legacyStateID))
	if err != nil {
		return nil, err
	}
	return &domain.RecordsSnapshot{Records: records, UpdatedAt: updatedAt, Source: domain.SourceLegacy}, nil
}

func (r *PgxLegacyRecordsRepository) ReplaceRecords(ctx context.Context, records []domain.ClientRecord, expected, next string) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := r.writeState(ctx, tx, records, expected, next); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

func (r *PgxLegacyRecordsRepository) ApplyPatch(ctx context.Context, ops []domain.PatchOperation, expected, next string) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	// Lock the blob so the read-modify-write cannot interleave with another writer.
	query := `SELECT payload, updated_at FROM client_records_legacy_state WHERE id = $1 FOR UPDATE;`
	current, updatedAt, err := scanLegacyState(tx.QueryRow(ctx, query, legacyStateID))
	if err != nil {
		return err
	}
	if updatedAt != expected {
		return apperrors.NewConflictError(expected, updatedAt)
	}

	if err := r.writeState(ctx, tx, domain.ApplyPatchOperations(current, ops), expected, next); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

func (r *PgxLegacyRecordsRepository) OverwriteRecords(ctx context.Context, records []domain.ClientRecord, stamp string) error {
	payload, err := json.Marshal(nonNilRecords(records))
	if err != nil {
		return apperrors.NewInternalError("failed to encode legacy records", err)
	}
	query := `
		INSERT INTO client_records_legacy_state (id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at;
	`
	if _, err := r.Pool.Exec(ctx, query, legacyStateID, payload, stamp); err != nil {
		return storageError("failed to overwrite legacy records", err)
	}
	return nil
}

// writeState stores records only if the row still carries expected. An empty expected
// means the row must not exist yet.
func (r *PgxLegacyRecordsRepository) writeState(ctx context.Context, tx pgx.Tx, records []domain.ClientRecord, expected, next string) error {
	payload, err := json.Marshal(nonNilRecords(records))
	if err != nil {
		return apperrors.NewInternalError("failed to encode legacy records", err)
	}

	var query string
	var args []any
	if expected == "" {
		query = `
			INSERT INTO client_records_legacy_state (id, payload, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING;
		`
		args = []any{legacyStateID, payload, next}
	} else {
		query = `
			UPDATE client_records_legacy_state
			SET payload = $2, updated_at = $3
			WHERE id = $1 AND updated_at = $4;
		`
		args = []any{legacyStateID, payload, next, expected}
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return storageError("failed to write legacy records", err)
	}
	if tag.RowsAffected() == 0 {
		current, _ := currentLegacyStamp(ctx, tx)
		return apperrors.NewConflictError(expected, current)
	}
	return nil
}

func currentLegacyStamp(ctx context.Context, tx pgx.Tx) (string, error) {
	var stamp string
	err := tx.QueryRow(ctx, `SELECT updated_at FROM client_records_legacy_state WHERE id = $1;`, legacyStateID).Scan(&stamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return stamp, err
}

func scanLegacyState(row pgx.Row) ([]domain.ClientRecord, string, error) {
	var payload []byte
	var updatedAt string
	err := row.Scan(&payload, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return []domain.ClientRecord{}, "", nil
	}
	if err != nil {
		return nil, "", storageError("failed to load legacy records", err)
	}

	var records []domain.ClientRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, "", apperrors.NewInternalError("legacy records payload is corrupt", err)
	}
	return nonNilRecords(records), updatedAt, nil
}

func nonNilRecords(records []domain.ClientRecord) []domain.ClientRecord {
	if records == nil {
		return []domain.ClientRecord{}
	}
	return records
}
