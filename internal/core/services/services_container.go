package services

import (
	"fmt"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/SscSPs/client_records_app/internal/platform/config"
)

// RecordLimitsFromConfig overlays the configured ceilings on the default per-field limits.
func RecordLimitsFromConfig(cfg config.RecordsConfig) RecordLimits {
	limits := DefaultRecordLimits()
	limits.MaxRecordCount = cfg.MaxRecordCount
	limits.MaxFieldsPerRecord = cfg.MaxFieldsPerRecord
	limits.MaxRecordChars = cfg.MaxRecordChars
	limits.MaxPayloadChars = cfg.MaxPayloadChars
	limits.MoneyMaxAbsoluteCents = cfg.MoneyMaxAbsoluteCents
	return limits
}

// NewServiceContainer creates a new service container with properly initialized dependencies.
// Repositories left nil in repos make the records store report storage as unavailable.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, publisher portssvc.NotificationPublisher) (*portssvc.ServiceContainer, error) {
	mode, err := domain.ParseMigrationMode(cfg.Records.MigrationMode)
	if err != nil {
		return nil, err
	}
	normalizer, err := NewRecordNormalizer(RecordLimitsFromConfig(cfg.Records))
	if err != nil {
		return nil, fmt.Errorf("failed to create record normalizer: %w", err)
	}

	opts := []RecordsServiceOption{
		WithMigrationMode(mode),
		WithLinkBuilder(QueryLinkBuilder(cfg.Records.LinkBaseURL)),
		WithLocation(cfg.Records.Location()),
		WithStorageTimeout(cfg.Records.StorageTimeout),
	}
	if repos.LegacyRecordsRepo != nil {
		opts = append(opts, WithLegacyRepository(repos.LegacyRecordsRepo))
	}
	if repos.V2RecordsRepo != nil {
		opts = append(opts, WithV2Repository(repos.V2RecordsRepo))
	}
	if publisher != nil {
		opts = append(opts, WithNotificationPublisher(publisher))
	}

	return &portssvc.ServiceContainer{
		Records: NewRecordsService(normalizer, opts...),
	}, nil
}

var _ portssvc.Drainer = (*recordsService)(nil)
