package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RecordsSource names the storage representation that served a read.
type RecordsSource string

const (
	SourceLegacy RecordsSource = "legacy"
	SourceV2     RecordsSource = "v2"
)

// MigrationMode selects how the records store routes reads and writes between representations.
type MigrationMode string

const (
	ModeLegacyOnly             MigrationMode = "legacy_only"
	ModeWriteV2ReadLegacy      MigrationMode = "write_v2_read_legacy"
	ModeFullV2NoLegacyMirror   MigrationMode = "full_v2_no_legacy_mirror"
	ModeFullV2WithLegacyMirror MigrationMode = "full_v2_with_legacy_mirror"
)

// MigrationModes lists every supported mode.
var MigrationModes = []MigrationMode{
	ModeLegacyOnly,
	ModeWriteV2ReadLegacy,
	ModeFullV2NoLegacyMirror,
	ModeFullV2WithLegacyMirror,
}

// ParseMigrationMode validates a configured mode name.
func ParseMigrationMode(s string) (MigrationMode, error) {
	mode := MigrationMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range MigrationModes {
		if m == mode {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown records migration mode %q", s)
}

// Authoritative returns the representation that owns reads, preconditions and commits.
func (m MigrationMode) Authoritative() RecordsSource {
	switch m {
	case ModeFullV2NoLegacyMirror, ModeFullV2WithLegacyMirror:
		return SourceV2
	default:
		return SourceLegacy
	}
}

// Shadow returns the best-effort secondary representation, if the mode keeps one.
func (m MigrationMode) Shadow() (RecordsSource, bool) {
	switch m {
	case ModeWriteV2ReadLegacy:
		return SourceV2, true
	case ModeFullV2WithLegacyMirror:
		return SourceLegacy, true
	default:
		return "", false
	}
}

// RecordsSnapshot is the collection as read from one representation.
// UpdatedAt is empty when the collection has never been written.
type RecordsSnapshot struct {
	Records   []ClientRecord
	UpdatedAt string
	Source    RecordsSource
}

// Exists reports whether the collection has been written at least once.
func (s RecordsSnapshot) Exists() bool {
	return s.UpdatedAt != ""
}

// Precondition is the expectedUpdatedAt a writer supplies.
// Present=false means the key was omitted. Expected=="" with Present=true is the null sentinel.
type Precondition struct {
	Present  bool
	Expected string
}

// ExpectNull builds the "collection must not exist yet" precondition.
func ExpectNull() Precondition {
	return Precondition{Present: true}
}

// ExpectStamp builds a precondition on a known stamp.
func ExpectStamp(stamp string) Precondition {
	return Precondition{Present: true, Expected: stamp}
}

// PatchOperationType tags a patch operation.
type PatchOperationType string

const (
	PatchUpsert PatchOperationType = "upsert"
	PatchDelete PatchOperationType = "delete"
)

// RawPatchOperation is a patch operation before its record has been normalized.
type RawPatchOperation struct {
	Type   string          `json:"type" validate:"required,oneof=upsert delete"`
	ID     string          `json:"id" validate:"max=200"`
	Record json.RawMessage `json:"record,omitempty"`
}

// PatchOperation is a validated upsert-or-delete instruction.
type PatchOperation struct {
	Type   PatchOperationType
	ID     string
	Record ClientRecord
}

// PatchResult is returned after a committed patch batch.
type PatchResult struct {
	UpdatedAt         string
	AppliedOperations int
}

// ApplyPatchOperations applies ops in order to a copy of records.
// Upserts replace in place or append; deletes of unknown ids are no-ops.
func ApplyPatchOperations(records []ClientRecord, ops []PatchOperation) []ClientRecord {
	out := make([]ClientRecord, len(records))
	copy(out, records)
	for _, op := range ops {
		idx := -1
		for i := range out {
			if out[i].ID == op.ID {
				idx = i
				break
			}
		}
		switch op.Type {
		case PatchUpsert:
			if idx >= 0 {
				out[idx] = op.Record
			} else {
				out = append(out, op.Record)
			}
		case PatchDelete:
			if idx >= 0 {
				out = append(out[:idx], out[idx+1:]...)
			}
		}
	}
	return out
}

// IndexRecordsByID maps non-empty ids to records.
func IndexRecordsByID(records []ClientRecord) map[string]ClientRecord {
	m := make(map[string]ClientRecord, len(records))
	for _, r := range records {
		if r.ID != "" {
			m[r.ID] = r
		}
	}
	return m
}
