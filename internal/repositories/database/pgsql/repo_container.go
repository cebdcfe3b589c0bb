package pgsql

import (
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		LegacyRecordsRepo: NewLegacyRecordsRepository(dbPool),
		V2RecordsRepo:     NewV2RecordsRepository(dbPool),
	}
}
