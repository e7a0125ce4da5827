package catalog

import (
	"context"
	"time"

	"filmgov/internal/model"
)

// Database provides the live relational store.
// Mutations of movies, tags, edges, audit entries and archive records only
// happen through Tx so that each entity-level change commits atomically.
type Database interface {
	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. fn must not call other Database
	// methods.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Read side

	// LoadDataset returns a consistent read-only view of the live store.
	LoadDataset(ctx context.Context) (*model.Dataset, error)

	// FindMovieByExternalID returns the live movie with the given external id, or nil.
	FindMovieByExternalID(ctx context.Context, externalID string) (*model.Movie, error)

	// ListMovies returns all live movies ordered by surrogate id.
	ListMovies(ctx context.Context) ([]*model.Movie, error)

	// CountMovies returns the number of live movies.
	CountMovies(ctx context.Context) (int, error)

	// ListArchiveCandidates returns ids of live movies released before cutoffYear.
	// Movies without a release date are never candidates.
	ListArchiveCandidates(ctx context.Context, cutoffYear int) ([]int64, error)

	// ListTags returns every tag of the given kind ordered by id.
	ListTags(ctx context.Context, kind model.TagKind) ([]*model.Tag, error)

	// ListEdges returns the tag edges of a movie.
	ListEdges(ctx context.Context, movieID int64) ([]model.TagEdge, error)

	// Audit log

	// ListAuditEntries returns audit entries for an entity ordered by timestamp.
	ListAuditEntries(ctx context.Context, entityID int64) ([]*model.AuditEntry, error)

	// PruneAuditEntries deletes audit entries older than before and returns
	// how many were removed. It does not write audit entries itself.
	PruneAuditEntries(ctx context.Context, before time.Time) (int64, error)

	// Archive

	// ListArchiveRecords returns every archive record ordered by id.
	ListArchiveRecords(ctx context.Context) ([]*model.ArchiveRecord, error)

	// Dataset metadata

	// SetMetadata upserts dataset-level catalog entries.
	SetMetadata(ctx context.Context, values map[string]string, at time.Time) error

	// SchemaVersion returns the applied migration version.
	SchemaVersion() (uint, error)

	// Run tracking

	// CreateRun persists a new run and returns it with its id assigned.
	CreateRun(ctx context.Context, run *model.Run) (*model.Run, error)

	// FinishRun records the outcome of a run.
	FinishRun(ctx context.Context, id int64, status string, summary string, at time.Time) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)

	// Maintenance

	// BackupTo writes a complete copy of the database to destPath.
	BackupTo(ctx context.Context, destPath string) error

	// CheckMigrations verifies the schema is up-to-date.
	CheckMigrations() error

	// Path returns the database location.
	Path() string

	// Close closes the database connection.
	Close() error
}

// Tx is the write surface available inside Database.WithTx.
type Tx interface {
	TagStore
	AuditWriter

	// FindMovieByExternalID returns the live movie with the given external id, or nil.
	FindMovieByExternalID(ctx context.Context, externalID string) (*model.Movie, error)

	// FindMovieByID returns the live movie with the given surrogate id, or nil.
	FindMovieByID(ctx context.Context, id int64) (*model.Movie, error)

	// InsertMovie inserts a new live movie and returns its surrogate id.
	// A conflicting external id yields ErrDuplicateExternalID.
	InsertMovie(ctx context.Context, m *model.Movie) (int64, error)

	// UpdateMovie overwrites the catalog fields of an existing movie by id.
	UpdateMovie(ctx context.Context, m *model.Movie) error

	// DeleteMovie removes a live movie and all of its tag edges.
	DeleteMovie(ctx context.Context, id int64) error

	// ReplaceEdges sets the tags of one kind carried by a movie.
	ReplaceEdges(ctx context.Context, movieID int64, kind model.TagKind, tagIDs []int64) error

	// InsertArchiveRecord stores an archive copy and returns its id.
	InsertArchiveRecord(ctx context.Context, r *model.ArchiveRecord) (int64, error)
}

// TagStore is the persistence used by the Dictionary.
type TagStore interface {
	// FindTag returns the id of the tag with the given normalized name.
	FindTag(ctx context.Context, kind model.TagKind, name string) (int64, bool, error)

	// InsertTag creates a tag and returns its id.
	InsertTag(ctx context.Context, kind model.TagKind, name string) (int64, error)
}

// AuditWriter is the persistence used by the AuditRecorder.
type AuditWriter interface {
	// InsertAuditEntry appends an audit entry and returns its id.
	InsertAuditEntry(ctx context.Context, e *model.AuditEntry) (int64, error)
}
