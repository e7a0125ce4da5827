package model

import "time"

// TagKind identifies one categorical tag family. Every kind has its own
// dictionary table and join table.
type TagKind string

const (
	TagGenre   TagKind = "genre"
	TagKeyword TagKind = "keyword"
)

// TagKinds lists every supported tag kind in a stable order.
var TagKinds = []TagKind{TagGenre, TagKeyword}

// Valid reports whether k is a known tag kind.
func (k TagKind) Valid() bool {
	return k == TagGenre || k == TagKeyword
}

// Tag is a normalized, deduplicated categorical label.
type Tag struct {
	ID   int64
	Kind TagKind
	Name string // normalized value, unique per kind
}

// TagEdge records that a movie carries a tag.
type TagEdge struct {
	MovieID int64
	Kind    TagKind
	TagID   int64
}

// AuditOperation is the kind of mutation an audit entry captures.
type AuditOperation string

const (
	AuditCreate AuditOperation = "create"
	AuditUpdate AuditOperation = "update"
	AuditDelete AuditOperation = "delete"
)

// AuditEntry is an immutable record of one mutation of the live store.
type AuditEntry struct {
	ID        int64
	StoreName string
	Operation AuditOperation
	EntityID  int64
	Prior     Values // nil for create
	New       Values // nil for delete
	Timestamp time.Time
}

// ArchiveReason explains why a movie left the live store.
type ArchiveReason string

const (
	ReasonOldData   ArchiveReason = "OLD_DATA"
	ReasonDuplicate ArchiveReason = "DUPLICATE"
)

// ArchiveRecord is the reduced copy of a movie kept after it is removed
// from the live store.
type ArchiveRecord struct {
	ID          int64
	MovieID     int64 // surrogate id the movie had while live
	ExternalID  string
	Title       string
	ReleaseDate *time.Time
	Budget      int64
	Revenue     int64
	ArchivedAt  time.Time
	Reason      ArchiveReason
}

// Run tracks one batch job (ingest, retention, assessment, backup).
type Run struct {
	ID         int64
	UUID       string
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "running", "success" or "error"
	Summary    string // JSON document describing the outcome
}

// Run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunError   = "error"
)

// Dataset-level catalog keys stored in dataset_metadata.
const (
	MetaName           = "name"
	MetaDescription    = "description"
	MetaSource         = "source"
	MetaSchemaVersion  = "schema_version"
	MetaUpdateCadence  = "update_cadence"
	MetaOwner          = "owner"
	MetaLicense        = "license"
	MetaLastIngestedAt = "last_ingested_at"
)

// CatalogFields are the descriptive fields governance expects to be populated.
var CatalogFields = []string{
	MetaName,
	MetaDescription,
	MetaSource,
	MetaSchemaVersion,
	MetaUpdateCadence,
	MetaOwner,
	MetaLicense,
}
