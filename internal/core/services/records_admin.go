package services

import (
	"context"
	"fmt"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	"github.com/SscSPs/client_records_app/internal/utils/dates"
)

// RepresentationSummary describes one storage representation.
type RepresentationSummary struct {
	Source    domain.RecordsSource `json:"source"`
	Records   int                  `json:"records"`
	UpdatedAt string               `json:"updatedAt"`
}

// RepresentationReport compares the legacy and v2 representations ahead of a mode switch.
type RepresentationReport struct {
	Legacy RepresentationSummary `json:"legacy"`
	V2     RepresentationSummary `json:"v2"`
	// Diverged lists record ids whose content differs or that exist on one side only.
	Diverged []string `json:"diverged"`
	InSync   bool     `json:"inSync"`
}

// CompareRepresentations reads both representations and reports where they differ.
func CompareRepresentations(ctx context.Context, legacy, v2 portsrepo.RecordsReader) (*RepresentationReport, error) {
	legacySnap, err := legacy.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load legacy records: %w", err)
	}
	v2Snap, err := v2.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load v2 records: %w", err)
	}

	report := &RepresentationReport{
		Legacy:   summarize(domain.SourceLegacy, legacySnap),
		V2:       summarize(domain.SourceV2, v2Snap),
		Diverged: divergedIDs(legacySnap.Records, v2Snap.Records),
	}
	report.InSync = len(report.Diverged) == 0 && sameStamp(legacySnap.UpdatedAt, v2Snap.UpdatedAt)
	return report, nil
}

// CopyRepresentation overwrites to with the contents of from, keeping the stamp.
// It refuses to copy a never-written collection, and refuses to clobber a newer target unless force is set.
func CopyRepresentation(ctx context.Context, from portsrepo.RecordsRepositoryFacade, to portsrepo.RecordsRepositoryFacade, force bool) (*RepresentationSummary, error) {
	src, err := from.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s records: %w", from.Source(), err)
	}
	if !src.Exists() {
		return nil, fmt.Errorf("%s records have never been written", from.Source())
	}

	if !force {
		dst, err := to.LoadRecords(ctx)
		if err != nil {
			return nil, fmt.Errorf("load %s records: %w", to.Source(), err)
		}
		if dst.Exists() && newerStamp(dst.UpdatedAt, src.UpdatedAt) {
			return nil, fmt.Errorf("%s records (%s) are newer than %s records (%s)", to.Source(), dst.UpdatedAt, from.Source(), src.UpdatedAt)
		}
	}

	if err := to.OverwriteRecords(ctx, src.Records, src.UpdatedAt); err != nil {
		return nil, fmt.Errorf("overwrite %s records: %w", to.Source(), err)
	}
	summary := summarize(to.Source(), src)
	return &summary, nil
}

func summarize(source domain.RecordsSource, snap *domain.RecordsSnapshot) RepresentationSummary {
	return RepresentationSummary{Source: source, Records: len(snap.Records), UpdatedAt: snap.UpdatedAt}
}

func divergedIDs(a, b []domain.ClientRecord) []string {
	byID := make(map[string]domain.ClientRecord, len(b))
	for _, r := range b {
		byID[r.ID] = r
	}

	diverged := []string{}
	for _, r := range a {
		other, ok := byID[r.ID]
		if !ok || other != r {
			diverged = append(diverged, r.ID)
		}
		delete(byID, r.ID)
	}
	for _, r := range b {
		if _, ok := byID[r.ID]; ok {
			diverged = append(diverged, r.ID)
		}
	}
	return diverged
}

// newerStamp reports whether a is strictly later than b. Unparseable stamps never count as newer.
func newerStamp(a, b string) bool {
	ta, errA := dates.ParseTimestamp(a)
	tb, errB := dates.ParseTimestamp(b)
	if errA != nil || errB != nil {
		return false
	}
	return ta.After(tb)
}
