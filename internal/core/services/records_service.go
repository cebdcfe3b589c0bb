package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/SscSPs/client_records_app/internal/utils/accounting"
	"github.com/SscSPs/client_records_app/internal/utils/dates"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultStorageTimeout = 10 * time.Second
	defaultPublishTimeout = 15 * time.Second
)

// recordsService is the records store. All writes for the collection go through mu,
// and the repositories re-check the expected stamp inside their own transaction.
type recordsService struct {
	BaseService

	mu sync.Mutex

	mode       domain.MigrationMode
	legacy     portsrepo.RecordsRepositoryFacade
	v2         portsrepo.RecordsRepositoryFacade
	normalizer *RecordNormalizer
	validate   *validator.Validate

	publisher      portssvc.NotificationPublisher
	link           LinkBuilder
	publishTimeout time.Duration
	inflight       sync.WaitGroup

	now            func() time.Time
	location       *time.Location
	storageTimeout time.Duration
}

var _ portssvc.RecordsSvcFacade = (*recordsService)(nil)

// RecordsServiceOption configures the records store.
type RecordsServiceOption func(*recordsService)

// WithMigrationMode selects how reads and writes are routed between representations.
func WithMigrationMode(mode domain.MigrationMode) RecordsServiceOption {
	return func(s *recordsService) {
		s.mode = mode
	}
}

// WithLegacyRepository sets the single-blob representation.
func WithLegacyRepository(repo portsrepo.RecordsRepositoryFacade) RecordsServiceOption {
	return func(s *recordsService) {
		s.legacy = repo
	}
}

// WithV2Repository sets the relational representation.
func WithV2Repository(repo portsrepo.RecordsRepositoryFacade) RecordsServiceOption {
	return func(s *recordsService) {
		s.v2 = repo
	}
}

// WithNotificationPublisher receives payment events after each committed write.
func WithNotificationPublisher(publisher portssvc.NotificationPublisher) RecordsServiceOption {
	return func(s *recordsService) {
		s.publisher = publisher
	}
}

// WithLinkBuilder sets the display link attached to payment events.
func WithLinkBuilder(link LinkBuilder) RecordsServiceOption {
	return func(s *recordsService) {
		s.link = link
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) RecordsServiceOption {
	return func(s *recordsService) {
		s.now = now
	}
}

// WithLocation sets the zone used for "today" when defaulting dateWhenWrittenOff.
func WithLocation(loc *time.Location) RecordsServiceOption {
	return func(s *recordsService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithStorageTimeout bounds every repository call.
func WithStorageTimeout(d time.Duration) RecordsServiceOption {
	return func(s *recordsService) {
		s.storageTimeout = d
	}
}

// WithPublishTimeout bounds each asynchronous notification publish.
func WithPublishTimeout(d time.Duration) RecordsServiceOption {
	return func(s *recordsService) {
		s.publishTimeout = d
	}
}

// RecordsService is the records store plus a hook to wait for pending notifications on shutdown.
type RecordsService interface {
	portssvc.RecordsSvcFacade
	Drain(ctx context.Context) error
}

// NewRecordsService creates the records store. A representation left unset is treated as
// unconfigured storage and requests routed to it fail with ServiceUnavailable.
func NewRecordsService(normalizer *RecordNormalizer, opts ...RecordsServiceOption) RecordsService {
	s := &recordsService{
		mode:           domain.ModeLegacyOnly,
		normalizer:     normalizer,
		validate:       validator.New(),
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
		location:       time.Local,
		storageTimeout: defaultStorageTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *recordsService) GetRecords(ctx context.Context) (*domain.RecordsSnapshot, error) {
	primary, err := s.primary()
	if err != nil {
		return nil, err
	}

	snap, err := s.load(ctx, primary)
	if err != nil {
		return nil, err
	}
	if !s.needsBackfill(snap) {
		return snap, nil
	}

	// Take mu only when legacy has records to seed into v2.
	legacySnap, err := s.load(ctx, s.legacy)
	if err != nil {
		s.LogWarn(ctx, err, "Legacy records unreadable, skipping v2 backfill")
		return snap, nil
	}
	if !legacySnap.Exists() {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCurrent(ctx)
}

func (s *recordsService) ReplaceRecords(ctx context.Context, raw any, precondition domain.Precondition) (string, error) {
	logger := s.GetLogger(ctx)
	if !precondition.Present {
		return "", apperrors.NewPreconditionRequiredError()
	}

	records, err := s.normalizer.NormalizeRecords(raw)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	primary, err := s.primary()
	if err != nil {
		return "", err
	}
	current, err := s.loadCurrent(ctx)
	if err != nil {
		return "", err
	}
	if err := checkPrecondition(precondition, current); err != nil {
		logger.Info("Records replace rejected by precondition",
			slog.String("expected", precondition.Expected), slog.String("current", current.UpdatedAt))
		return "", err
	}

	prepared := s.prepareRecords(records, current.Records)
	next := s.nextStamp(current.UpdatedAt)

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return primary.ReplaceRecords(ctx, prepared, current.UpdatedAt, next)
	})
	if err != nil {
		return "", s.storageError(ctx, "replace", primary.Source(), err)
	}

	logger.Info("Records replaced",
		slog.Int("records", len(prepared)),
		slog.String("updated_at", next),
		slog.String("source", string(primary.Source())))

	s.mirror(ctx, prepared, next)
	s.notify(ctx, current.Records, prepared)
	return next, nil
}

func (s *recordsService) PatchRecords(ctx context.Context, rawOps []domain.RawPatchOperation, precondition domain.Precondition) (*domain.PatchResult, error) {
	logger := s.GetLogger(ctx)
	if !precondition.Present {
		return nil, apperrors.NewPreconditionRequiredError()
	}

	ops, err := s.parseOperations(rawOps)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	primary, err := s.primary()
	if err != nil {
		return nil, err
	}
	current, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkPrecondition(precondition, current); err != nil {
		logger.Info("Records patch rejected by precondition",
			slog.String("expected", precondition.Expected), slog.String("current", current.UpdatedAt))
		return nil, err
	}

	today := s.now().In(s.location)
	working := current.Records
	for i := range ops {
		if ops[i].Type == domain.PatchUpsert {
			prev := findRecord(working, ops[i].ID)
			ops[i].Record = prepareRecord(ops[i].Record, prev, today)
		}
		working = domain.ApplyPatchOperations(working, ops[i:i+1])
	}
	if limit := s.normalizer.Limits().MaxRecordCount; len(working) > limit {
		return nil, apperrors.NewValidationError(apperrors.CodePayloadTooManyRecords, -1, "",
			fmt.Sprintf("patch would grow the collection to %d records, at most %d are allowed", len(working), limit))
	}

	next := s.nextStamp(current.UpdatedAt)
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return primary.ApplyPatch(ctx, ops, current.UpdatedAt, next)
	})
	if err != nil {
		return nil, s.storageError(ctx, "patch", primary.Source(), err)
	}

	logger.Info("Records patched",
		slog.Int("operations", len(ops)),
		slog.String("updated_at", next),
		slog.String("source", string(primary.Source())))

	s.mirror(ctx, working, next)
	s.notify(ctx, current.Records, working)
	return &domain.PatchResult{UpdatedAt: next, AppliedOperations: len(ops)}, nil
}

// Drain waits for in-flight notification publishes.
func (s *recordsService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseOperations validates the batch shape and normalizes every upsert before any storage access.
func (s *recordsService) parseOperations(rawOps []domain.RawPatchOperation) ([]domain.PatchOperation, error) {
	limits := s.normalizer.Limits()
	if len(rawOps) == 0 {
		return nil, apperrors.NewValidationError(apperrors.CodePatchInvalidPayload, -1, "", "operations must not be empty")
	}
	if len(rawOps) > limits.MaxRecordCount {
		return nil, apperrors.NewValidationError(apperrors.CodePatchTooManyOperations, -1, "",
			fmt.Sprintf("at most %d operations are allowed, got %d", limits.MaxRecordCount, len(rawOps)))
	}

	ops := make([]domain.PatchOperation, 0, len(rawOps))
	totalChars := 0
	for i, raw := range rawOps {
		if err := s.validate.Struct(raw); err != nil {
			return nil, apperrors.NewValidationError(apperrors.CodePatchInvalidOperation, i, "type",
				`operation type must be "upsert" or "delete"`)
		}
		id := strings.TrimSpace(raw.ID)

		switch domain.PatchOperationType(raw.Type) {
		case domain.PatchDelete:
			if id == "" {
				return nil, apperrors.NewValidationError(apperrors.CodePatchMissingID, i, domain.FieldID, "delete requires an id")
			}
			ops = append(ops, domain.PatchOperation{Type: domain.PatchDelete, ID: id})

		case domain.PatchUpsert:
			if isJSONNull(raw.Record) {
				return nil, apperrors.NewValidationError(apperrors.CodePatchInvalidPayload, i, "record", "upsert requires a record")
			}
			value, err := DecodeJSONValue(raw.Record)
			if err != nil {
				return nil, apperrors.NewValidationError(apperrors.CodePatchInvalidPayload, i, "record", "record is not valid JSON")
			}
			record, chars, err := s.normalizer.NormalizeRecord(i, value)
			if err != nil {
				return nil, err
			}
			totalChars += chars
			if totalChars > limits.MaxPayloadChars {
				return nil, apperrors.NewValidationError(apperrors.CodePayloadTooLarge, i, "",
					fmt.Sprintf("payload exceeds %d characters", limits.MaxPayloadChars))
			}

			switch {
			case id == "" && record.ID == "":
				id = uuid.NewString()
			case id == "":
				id = record.ID
			case record.ID != "" && record.ID != id:
				return nil, apperrors.NewValidationError(apperrors.CodePatchIDMismatch, i, domain.FieldID,
					fmt.Sprintf("record id %q does not match operation id %q", record.ID, id))
			}
			record.ID = id
			ops = append(ops, domain.PatchOperation{Type: domain.PatchUpsert, ID: id, Record: record})
		}
	}
	return ops, nil
}

// prepareRecords assigns missing ids and derives state against the stored version of each record.
func (s *recordsService) prepareRecords(records, existing []domain.ClientRecord) []domain.ClientRecord {
	today := s.now().In(s.location)
	byID := domain.IndexRecordsByID(existing)
	out := make([]domain.ClientRecord, len(records))
	for i, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		var prev *domain.ClientRecord
		if stored, ok := byID[r.ID]; ok {
			prev = &stored
		}
		out[i] = prepareRecord(r, prev, today)
	}
	return out
}

func prepareRecord(record domain.ClientRecord, prev *domain.ClientRecord, today time.Time) domain.ClientRecord {
	if record.CreatedAt == "" && prev != nil {
		record.CreatedAt = prev.CreatedAt
	}
	return accounting.DeriveState(record, prev, today)
}

func findRecord(records []domain.ClientRecord, id string) *domain.ClientRecord {
	for i := range records {
		if records[i].ID == id {
			r := records[i]
			return &r
		}
	}
	return nil
}

func (s *recordsService) primary() (portsrepo.RecordsRepositoryFacade, error) {
	repo := s.repoFor(s.mode.Authoritative())
	if repo == nil {
		return nil, apperrors.NewUnavailableError("records storage is not configured", nil)
	}
	return repo, nil
}

func (s *recordsService) repoFor(source domain.RecordsSource) portsrepo.RecordsRepositoryFacade {
	if source == domain.SourceV2 {
		return s.v2
	}
	return s.legacy
}

func (s *recordsService) needsBackfill(snap *domain.RecordsSnapshot) bool {
	return s.mode.Authoritative() == domain.SourceV2 && !snap.Exists() && s.legacy != nil
}

// loadCurrent reads the authoritative snapshot and, in full-v2 modes, seeds v2 from legacy
// the first time v2 is found empty. Callers must hold mu.
func (s *recordsService) loadCurrent(ctx context.Context) (*domain.RecordsSnapshot, error) {
	primary, err := s.primary()
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, primary)
	if err != nil || !s.needsBackfill(snap) {
		return snap, err
	}

	legacySnap, err := s.load(ctx, s.legacy)
	if err != nil {
		s.LogWarn(ctx, err, "Legacy records unreadable, skipping v2 backfill")
		return snap, nil
	}
	if !legacySnap.Exists() {
		return snap, nil
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return primary.OverwriteRecords(ctx, legacySnap.Records, legacySnap.UpdatedAt)
	})
	if err != nil {
		return nil, s.storageError(ctx, "backfill", primary.Source(), err)
	}
	s.LogInfo(ctx, "Backfilled v2 records from legacy",
		slog.Int("records", len(legacySnap.Records)),
		slog.String("updated_at", legacySnap.UpdatedAt))

	return &domain.RecordsSnapshot{
		Records:   legacySnap.Records,
		UpdatedAt: legacySnap.UpdatedAt,
		Source:    primary.Source(),
	}, nil
}

func (s *recordsService) load(ctx context.Context, repo portsrepo.RecordsRepositoryFacade) (*domain.RecordsSnapshot, error) {
	var snap *domain.RecordsSnapshot
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		snap, err = repo.LoadRecords(ctx)
		return err
	})
	if err != nil {
		return nil, s.storageError(ctx, "load", repo.Source(), err)
	}
	if snap.Records == nil {
		snap.Records = []domain.ClientRecord{}
	}
	snap.Source = repo.Source()
	return snap, nil
}

// mirror copies a committed collection to the shadow representation. Failures are logged only.
func (s *recordsService) mirror(ctx context.Context, records []domain.ClientRecord, stamp string) {
	source, ok := s.mode.Shadow()
	if !ok {
		return
	}
	repo := s.repoFor(source)
	if repo == nil {
		s.LogDebug(ctx, "Shadow records repository not configured", slog.String("source", string(source)))
		return
	}
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		return repo.OverwriteRecords(ctx, records, stamp)
	})
	if err != nil {
		s.LogWarn(ctx, err, "Shadow records write failed",
			slog.String("source", string(source)),
			slog.String("mode", string(s.mode)),
			slog.String("updated_at", stamp))
	}
}

// notify detects payment events and publishes them off the write path.
func (s *recordsService) notify(ctx context.Context, before, after []domain.ClientRecord) {
	if s.publisher == nil {
		return
	}
	logger := s.GetLogger(ctx)
	detectedAt := s.now()
	publishCtx := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Payment notification panicked", slog.Any("panic", r))
			}
		}()

		events := DetectPaymentEvents(before, after, s.link, detectedAt)
		if len(events) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(publishCtx, s.publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, events); err != nil {
			logger.Warn("Failed to publish payment events",
				slog.String("error", err.Error()), slog.Int("events", len(events)))
			return
		}
		logger.Info("Published payment events", slog.Int("events", len(events)))
	}()
}

func (s *recordsService) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if s.storageTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	return fn(ctx)
}

// storageError keeps conflicts and typed failures as they are and turns anything else into ServiceUnavailable.
func (s *recordsService) storageError(ctx context.Context, op string, source domain.RecordsSource, err error) error {
	if errors.Is(err, apperrors.ErrConflict) {
		return err
	}
	s.LogError(ctx, err, "Records storage failed",
		slog.String("operation", op), slog.String("source", string(source)))
	if errors.Is(err, apperrors.ErrServiceUnavailable) || errors.Is(err, apperrors.ErrInternal) {
		return err
	}
	return apperrors.NewUnavailableError("records storage is unavailable", err)
}

func (s *recordsService) nextStamp(current string) string {
	now := s.now().UTC().Truncate(time.Millisecond)
	if prev, err := dates.ParseTimestamp(current); err == nil && !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return dates.FormatTimestamp(now)
}

func checkPrecondition(p domain.Precondition, current *domain.RecordsSnapshot) error {
	if !p.Present {
		return apperrors.NewPreconditionRequiredError()
	}
	if p.Expected == "" {
		if current.Exists() {
			return apperrors.NewConflictError("", current.UpdatedAt)
		}
		return nil
	}
	if !current.Exists() || !sameStamp(p.Expected, current.UpdatedAt) {
		return apperrors.NewConflictError(p.Expected, current.UpdatedAt)
	}
	return nil
}

// sameStamp compares stamps as instants so "...10:00:00Z" matches "...10:00:00.000Z".
func sameStamp(a, b string) bool {
	if a == b {
		return true
	}
	ta, errA := dates.ParseTimestamp(a)
	tb, errB := dates.ParseTimestamp(b)
	return errA == nil && errB == nil && ta.Equal(tb)
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
