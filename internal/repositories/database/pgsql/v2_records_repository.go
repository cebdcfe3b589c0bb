package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	"github.com/SscSPs/client_records_app/internal/models"
	"github.com/SscSPs/client_records_app/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const v2MetaID = 1

var (
	v2SelectQuery = fmt.Sprintf(
		`SELECT %s FROM client_records WHERE deleted_at IS NULL ORDER BY position, id;`,
		strings.Join(models.ClientRecordColumns, ", "))
	v2UpsertQuery = buildV2UpsertQuery()
)

// buildV2UpsertQuery writes every column; deleted_at is always NULL so re-upserting revives a soft-deleted row.
func buildV2UpsertQuery() string {
	placeholders := make([]string, len(models.ClientRecordColumns))
	updates := make([]string, 0, len(models.ClientRecordColumns)-1)
	for i, col := range models.ClientRecordColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "id" {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
	}
	return fmt.Sprintf(
		"INSERT INTO client_records (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s;",
		strings.Join(models.ClientRecordColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "))
}

type PgxV2RecordsRepository struct {
	BaseRepository
}

// NewV2RecordsRepository creates the relational records repository.
func NewV2RecordsRepository(pool *pgxpool.Pool) portsrepo.RecordsRepositoryFacade {
	return &PgxV2RecordsRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.RecordsRepositoryFacade = (*PgxV2RecordsRepository)(nil)

func (r *PgxV2RecordsRepository) Source() domain.RecordsSource {
	return domain.SourceV2
}

func (r *PgxV2RecordsRepository) LoadRecords(ctx context.Context) (*domain.RecordsSnapshot, error) {
	// Stamp and rows must come from the same snapshot.
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to begin read transaction", err)
	}
	defer r.Rollback(ctx, tx)

	var meta models.RecordsMeta
	err = tx.QueryRow(ctx, `SELECT updated_at FROM client_records_meta WHERE id = $1;`, v2MetaID).Scan(&meta.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, storageError("failed to load v2 records stamp", err)
	}

	rows, err := tx.Query(ctx, v2SelectQuery)
	if err != nil {
		return nil, storageError("failed to query v2 records", err)
	}
	modelRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.ClientRecordRow])
	if err != nil {
		return nil, storageError("failed to scan v2 records", err)
	}

	return &domain.RecordsSnapshot{
		Records:   mapping.ToDomainClientRecords(modelRows),
		UpdatedAt: meta.UpdatedAt,
		Source:    domain.SourceV2,
	}, nil
}

func (r *PgxV2RecordsRepository) ReplaceRecords(ctx context.Context, records []domain.ClientRecord, expected, next string) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := r.advanceStamp(ctx, tx, expected, next); err != nil {
		return err
	}
	if err := r.writeCollection(ctx, tx, records); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

func (r *PgxV2RecordsRepository) ApplyPatch(ctx context.Context, ops []domain.PatchOperation, expected, next string) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := r.advanceStamp(ctx, tx, expected, next); err != nil {
		return err
	}

	positions, maxPosition, err := r.activePositions(ctx, tx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, op := range ops {
		switch op.Type {
		case domain.PatchDelete:
			batch.Queue(`UPDATE client_records SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL;`, op.ID)
			delete(positions, op.ID)
		case domain.PatchUpsert:
			position, ok := positions[op.ID]
			if !ok {
				maxPosition++
				position = maxPosition
				positions[op.ID] = position
			}
			row, err := mapping.ToModelClientRecord(op.Record, position)
			if err != nil {
				return apperrors.NewInternalError("failed to map patched record", err)
			}
			batch.Queue(v2UpsertQuery, row.Values()...)
		}
	}
	if err := execBatch(ctx, tx, batch); err != nil {
		return storageError("failed to apply v2 patch", err)
	}
	return r.Commit(ctx, tx)
}

func (r *PgxV2RecordsRepository) OverwriteRecords(ctx context.Context, records []domain.ClientRecord, stamp string) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	query := `
		INSERT INTO client_records_meta (id, updated_at) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at;
	`
	if _, err := tx.Exec(ctx, query, v2MetaID, stamp); err != nil {
		return storageError("failed to overwrite v2 records stamp", err)
	}
	if err := r.writeCollection(ctx, tx, records); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

// advanceStamp moves the stamp from expected to next. The row lock taken here serializes writers.
func (r *PgxV2RecordsRepository) advanceStamp(ctx context.Context, tx pgx.Tx, expected, next string) error {
	var query string
	var args []any
	if expected == "" {
		query = `INSERT INTO client_records_meta (id, updated_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING;`
		args = []any{v2MetaID, next}
	} else {
		query = `UPDATE client_records_meta SET updated_at = $2 WHERE id = $1 AND updated_at = $3;`
		args = []any{v2MetaID, next, expected}
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return storageError("failed to advance v2 records stamp", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT updated_at FROM client_records_meta WHERE id = $1;`, v2MetaID).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return storageError("failed to read v2 records stamp", err)
		}
		return apperrors.NewConflictError(expected, current)
	}
	return nil
}

// writeCollection makes records the active set, in order, soft-deleting everything else.
func (r *PgxV2RecordsRepository) writeCollection(ctx context.Context, tx pgx.Tx, records []domain.ClientRecord) error {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE client_records SET deleted_at = now() WHERE deleted_at IS NULL AND NOT (id = ANY($1));`, ids)
	for i, rec := range records {
		row, err := mapping.ToModelClientRecord(rec, i)
		if err != nil {
			return apperrors.NewInternalError("failed to map record", err)
		}
		batch.Queue(v2UpsertQuery, row.Values()...)
	}
	if err := execBatch(ctx, tx, batch); err != nil {
		return storageError("failed to write v2 records", err)
	}
	return nil
}

func (r *PgxV2RecordsRepository) activePositions(ctx context.Context, tx pgx.Tx) (map[string]int, int, error) {
	rows, err := tx.Query(ctx, `SELECT id, position FROM client_records WHERE deleted_at IS NULL;`)
	if err != nil {
		return nil, 0, storageError("failed to query v2 record positions", err)
	}
	defer rows.Close()

	positions := make(map[string]int)
	maxPosition := -1
	for rows.Next() {
		var id string
		var position int
		if err := rows.Scan(&id, &position); err != nil {
			return nil, 0, storageError("failed to scan v2 record position", err)
		}
		positions[id] = position
		maxPosition = max(maxPosition, position)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageError("failed to iterate v2 record positions", err)
	}
	return positions, maxPosition, nil
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}
