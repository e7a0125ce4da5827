package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"filmgov/internal/catalog"
	"filmgov/internal/database/migrations"
	"filmgov/internal/model"
)

// timeLayout is fixed width so stored timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// tagTables maps a tag kind to its dictionary table, join table and join column.
var tagTables = map[model.TagKind]struct {
	tags, join, column string
}{
	model.TagGenre:   {tags: "genres", join: "movie_genres", column: "genre_id"},
	model.TagKeyword: {tags: "keywords", join: "movie_keywords", column: "keyword_id"},
}

const movieColumns = `id, external_id, title, original_title, overview, release_date,
	budget, revenue, runtime, vote_average, vote_count, popularity,
	original_language, status, tagline, homepage,
	source_run_id, source_ref, created_at, updated_at`

// SQLiteDatabase implements catalog.Database using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection.
// Pragmas are passed in the DSN so every pooled connection gets them.
// The pool is limited to one connection: writes are serialized anyway, and
// an in-memory database exists per connection.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classify("opening database", err)
	}
	return db, nil
}

// classify wraps err with catalog.ErrStorageUnavailable. Context errors are
// returned as is so cancellation stays recognizable.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, catalog.ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return strings.Contains(err.Error(), "database is locked")
}

// retryOnBusy retries a single statement while SQLite reports contention.
// Transactions are never retried here.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteDatabase) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// Transactions

// WithTx runs fn in a transaction that commits when fn returns nil.
func (s *SQLiteDatabase) WithTx(ctx context.Context, fn func(tx catalog.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("starting transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx implements catalog.Tx.
type sqliteTx struct {
	q querier
}

var _ catalog.Tx = (*sqliteTx)(nil)

func (t *sqliteTx) FindMovieByExternalID(ctx context.Context, externalID string) (*model.Movie, error) {
	return findMovie(ctx, t.q, "external_id = ?", externalID)
}

func (t *sqliteTx) FindMovieByID(ctx context.Context, id int64) (*model.Movie, error) {
	return findMovie(ctx, t.q, "id = ?", id)
}

func (t *sqliteTx) InsertMovie(ctx context.Context, m *model.Movie) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO movies (external_id, title, original_title, overview, release_date,
			budget, revenue, runtime, vote_average, vote_count, popularity,
			original_language, status, tagline, homepage,
			source_run_id, source_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ExternalID, m.Title, m.OriginalTitle, m.Overview, formatDate(m.ReleaseDate),
		m.Budget, m.Revenue, m.Runtime, m.Rating, m.RatingCount, m.Popularity,
		m.Language, m.Status, m.Tagline, m.Homepage,
		nullID(m.SourceRunID), m.SourceRef, formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("inserting movie %q: %w", m.ExternalID, catalog.ErrDuplicateExternalID)
		}
		return 0, classify("inserting movie", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("reading movie id", err)
	}
	return id, nil
}

func (t *sqliteTx) UpdateMovie(ctx context.Context, m *model.Movie) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE movies SET title = ?, original_title = ?, overview = ?, release_date = ?,
			budget = ?, revenue = ?, runtime = ?, vote_average = ?, vote_count = ?, popularity = ?,
			original_language = ?, status = ?, tagline = ?, homepage = ?,
			source_run_id = ?, source_ref = ?, updated_at = ?
		WHERE id = ?`,
		m.Title, m.OriginalTitle, m.Overview, formatDate(m.ReleaseDate),
		m.Budget, m.Revenue, m.Runtime, m.Rating, m.RatingCount, m.Popularity,
		m.Language, m.Status, m.Tagline, m.Homepage,
		nullID(m.SourceRunID), m.SourceRef, formatTime(m.UpdatedAt), m.ID)
	if err != nil {
		return classify("updating movie", err)
	}
	return expectOneRow(res, "updating movie", m.ID)
}

func (t *sqliteTx) DeleteMovie(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, "DELETE FROM movies WHERE id = ?", id)
	if err != nil {
		return classify("deleting movie", err)
	}
	return expectOneRow(res, "deleting movie", id)
}

func (t *sqliteTx) ReplaceEdges(ctx context.Context, movieID int64, kind model.TagKind, tagIDs []int64) error {
	tables, ok := tagTables[kind]
	if !ok {
		return fmt.Errorf("unknown tag kind: %q", kind)
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM "+tables.join+" WHERE movie_id = ?", movieID); err != nil {
		return classify("clearing "+tables.join, err)
	}
	insert := "INSERT OR IGNORE INTO " + tables.join + " (movie_id, " + tables.column + ") VALUES (?, ?)"
	for _, tagID := range tagIDs {
		if _, err := t.q.ExecContext(ctx, insert, movieID, tagID); err != nil {
			return classify("inserting "+tables.join, err)
		}
	}
	return nil
}

func (t *sqliteTx) FindTag(ctx context.Context, kind model.TagKind, name string) (int64, bool, error) {
	tables, ok := tagTables[kind]
	if !ok {
		return 0, false, fmt.Errorf("unknown tag kind: %q", kind)
	}
	var id int64
	err := t.q.QueryRowContext(ctx, "SELECT id FROM "+tables.tags+" WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify("finding "+string(kind), err)
	}
	return id, true, nil
}

func (t *sqliteTx) InsertTag(ctx context.Context, kind model.TagKind, name string) (int64, error) {
	tables, ok := tagTables[kind]
	if !ok {
		return 0, fmt.Errorf("unknown tag kind: %q", kind)
	}
	res, err := t.q.ExecContext(ctx, "INSERT INTO "+tables.tags+" (name) VALUES (?)", name)
	if err != nil {
		return 0, classify("inserting "+string(kind), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("reading "+string(kind)+" id", err)
	}
	return id, nil
}

func (t *sqliteTx) InsertAuditEntry(ctx context.Context, e *model.AuditEntry) (int64, error) {
	prior, err := encodeValues(e.Prior)
	if err != nil {
		return 0, err
	}
	next, err := encodeValues(e.New)
	if err != nil {
		return 0, err
	}
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO audit_log (store_name, operation, entity_id, prior_values, new_values, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.StoreName, string(e.Operation), e.EntityID, prior, next, formatTime(e.Timestamp))
	if err != nil {
		return 0, classify("inserting audit entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("reading audit entry id", err)
	}
	return id, nil
}

func (t *sqliteTx) InsertArchiveRecord(ctx context.Context, r *model.ArchiveRecord) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO movies_archive (movie_id, external_id, title, release_date, budget, revenue, archived_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MovieID, r.ExternalID, r.Title, formatDate(r.ReleaseDate), r.Budget, r.Revenue,
		formatTime(r.ArchivedAt), string(r.Reason))
	if err != nil {
		return 0, classify("inserting archive record", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("reading archive record id", err)
	}
	return id, nil
}

// Movie reads

func (s *SQLiteDatabase) FindMovieByExternalID(ctx context.Context, externalID string) (*model.Movie, error) {
	return findMovie(ctx, s.db, "external_id = ?", externalID)
}

func (s *SQLiteDatabase) ListMovies(ctx context.Context) ([]*model.Movie, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+movieColumns+" FROM movies ORDER BY id")
	if err != nil {
		return nil, classify("listing movies", err)
	}
	defer rows.Close()

	var movies []*model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("listing movies", err)
	}
	return movies, nil
}

func (s *SQLiteDatabase) CountMovies(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies").Scan(&n); err != nil {
		return 0, classify("counting movies", err)
	}
	return n, nil
}

func (s *SQLiteDatabase) ListArchiveCandidates(ctx context.Context, cutoffYear int) ([]int64, error) {
	// release_date is stored as YYYY-MM-DD, so a string comparison against
	// the first day of the cutoff year selects strictly earlier years.
	cutoff := fmt.Sprintf("%04d-01-01", cutoffYear)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM movies WHERE release_date IS NOT NULL AND release_date < ? ORDER BY id", cutoff)
	if err != nil {
		return nil, classify("listing archive candidates", err)
	}
	defer rows.Close()
	return scanIDs(rows, "listing archive candidates")
}

func (s *SQLiteDatabase) ListTags(ctx context.Context, kind model.TagKind) ([]*model.Tag, error) {
	tables, ok := tagTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown tag kind: %q", kind)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM "+tables.tags+" ORDER BY id")
	if err != nil {
		return nil, classify("listing "+tables.tags, err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		tag := &model.Tag{Kind: kind}
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, classify("scanning "+string(kind), err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("listing "+tables.tags, err)
	}
	return tags, nil
}

func (s *SQLiteDatabase) ListEdges(ctx context.Context, movieID int64) ([]model.TagEdge, error) {
	var edges []model.TagEdge
	for _, kind := range model.TagKinds {
		tables := tagTables[kind]
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+tables.column+" FROM "+tables.join+" WHERE movie_id = ? ORDER BY "+tables.column, movieID)
		if err != nil {
			return nil, classify("listing "+tables.join, err)
		}
		ids, err := scanIDs(rows, "listing "+tables.join)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			edges = append(edges, model.TagEdge{MovieID: movieID, Kind: kind, TagID: id})
		}
	}
	return edges, nil
}

// Dataset snapshot

// LoadDataset reads every live movie and its relational facts inside one
// transaction so the view is consistent.
func (s *SQLiteDatabase) LoadDataset(ctx context.Context) (*model.Dataset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting snapshot", err)
	}
	defer tx.Rollback()

	ds := &model.Dataset{Metadata: make(map[string]string)}
	index := make(map[int64]int)

	rows, err := tx.QueryContext(ctx, `
		SELECT `+movieColumns+`,
			EXISTS (SELECT 1 FROM runs r WHERE r.id = movies.source_run_id)
		FROM movies ORDER BY id`)
	if err != nil {
		return nil, classify("loading movies", err)
	}
	for rows.Next() {
		var traced bool
		m, err := scanMovie(rows, &traced)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[m.ID] = len(ds.Movies)
		ds.Movies = append(ds.Movies, model.MovieFacts{
			Movie:     *m,
			TagCounts: make(map[model.TagKind]int, len(model.TagKinds)),
			Tags:      make(map[model.TagKind][]string, len(model.TagKinds)),
			Traced:    traced,
		})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, classify("loading movies", err)
	}

	for _, kind := range model.TagKinds {
		if err := loadEdgeFacts(ctx, tx, kind, ds, index); err != nil {
			return nil, err
		}
	}

	var duplicates int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) - COUNT(DISTINCT external_id) FROM movies").Scan(&duplicates); err != nil {
		return nil, classify("counting duplicate external ids", err)
	}
	ds.DuplicateExternalIDs = duplicates

	metaRows, err := tx.QueryContext(ctx, "SELECT key, value FROM dataset_metadata")
	if err != nil {
		return nil, classify("loading dataset metadata", err)
	}
	defer metaRows.Close()
	for metaRows.Next() {
		var k, v string
		if err := metaRows.Scan(&k, &v); err != nil {
			return nil, classify("scanning dataset metadata", err)
		}
		ds.Metadata[k] = v
	}
	if err := metaRows.Err(); err != nil {
		return nil, classify("loading dataset metadata", err)
	}
	return ds, nil
}

// loadEdgeFacts folds the join table of kind into the movie facts. Tag
// names are checked against the canonical form so drift outside the
// dictionary is visible.
func loadEdgeFacts(ctx context.Context, tx *sql.Tx, kind model.TagKind, ds *model.Dataset, index map[int64]int) error {
	tables := tagTables[kind]
	rows, err := tx.QueryContext(ctx,
		"SELECT j.movie_id, t.name FROM "+tables.join+" j LEFT JOIN "+tables.tags+" t ON t.id = j."+tables.column)
	if err != nil {
		return classify("loading "+tables.join, err)
	}
	defer rows.Close()

	for rows.Next() {
		var movieID int64
		var name sql.NullString
		if err := rows.Scan(&movieID, &name); err != nil {
			return classify("scanning "+tables.join, err)
		}
		i, live := index[movieID]
		if !live {
			ds.DanglingEdges++
			continue
		}
		facts := &ds.Movies[i]
		if !name.Valid {
			facts.MissingTagEdges++
			continue
		}
		facts.TagCounts[kind]++
		facts.Tags[kind] = append(facts.Tags[kind], name.String)
		if !catalog.IsCanonical(name.String) {
			facts.NonCanonicalTags++
		}
	}
	if err := rows.Err(); err != nil {
		return classify("loading "+tables.join, err)
	}
	return nil
}

// Audit log

func (s *SQLiteDatabase) ListAuditEntries(ctx context.Context, entityID int64) ([]*model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_name, operation, entity_id, prior_values, new_values, recorded_at
		FROM audit_log WHERE entity_id = ? ORDER BY recorded_at, id`, entityID)
	if err != nil {
		return nil, classify("listing audit entries", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var (
			e           model.AuditEntry
			op, ts      string
			prior, next sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.StoreName, &op, &e.EntityID, &prior, &next, &ts); err != nil {
			return nil, classify("scanning audit entry", err)
		}
		e.Operation = model.AuditOperation(op)
		if e.Prior, err = decodeValues(prior); err != nil {
			return nil, err
		}
		if e.New, err = decodeValues(next); err != nil {
			return nil, err
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("listing audit entries", err)
	}
	return entries, nil
}

func (s *SQLiteDatabase) PruneAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM audit_log WHERE recorded_at < ?", formatTime(before))
	if err != nil {
		return 0, classify("pruning audit log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("pruning audit log", err)
	}
	return n, nil
}

// Archive

func (s *SQLiteDatabase) ListArchiveRecords(ctx context.Context) ([]*model.ArchiveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, movie_id, external_id, title, release_date, budget, revenue, archived_at, reason
		FROM movies_archive ORDER BY id`)
	if err != nil {
		return nil, classify("listing archive records", err)
	}
	defer rows.Close()

	var records []*model.ArchiveRecord
	for rows.Next() {
		var (
			r              model.ArchiveRecord
			date           sql.NullString
			archivedAt, rs string
		)
		if err := rows.Scan(&r.ID, &r.MovieID, &r.ExternalID, &r.Title, &date,
			&r.Budget, &r.Revenue, &archivedAt, &rs); err != nil {
			return nil, classify("scanning archive record", err)
		}
		if r.ReleaseDate, err = parseDate(date); err != nil {
			return nil, err
		}
		if r.ArchivedAt, err = parseTime(archivedAt); err != nil {
			return nil, err
		}
		r.Reason = model.ArchiveReason(rs)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("listing archive records", err)
	}
	return records, nil
}

// Dataset metadata

func (s *SQLiteDatabase) SetMetadata(ctx context.Context, values map[string]string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("starting transaction", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dataset_metadata (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, formatTime(at)); err != nil {
			return classify("setting dataset metadata "+k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("committing dataset metadata", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *SQLiteDatabase) SchemaVersion() (uint, error) {
	v, err := migrations.Version(s.db)
	if err != nil {
		return 0, classify("reading schema version", err)
	}
	return v, nil
}

// Run tracking

func (s *SQLiteDatabase) CreateRun(ctx context.Context, run *model.Run) (*model.Run, error) {
	res, err := s.execWithRetry(ctx, `
		INSERT INTO runs (run_uuid, operation, parameters, started_at, status, summary)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.UUID, run.Operation, run.Parameters, formatTime(run.StartedAt), run.Status, run.Summary)
	if err != nil {
		return nil, classify("creating run", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, classify("reading run id", err)
	}
	created := *run
	created.ID = id
	return &created, nil
}

func (s *SQLiteDatabase) FinishRun(ctx context.Context, id int64, status string, summary string, at time.Time) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?",
		status, summary, formatTime(at), id)
	if err != nil {
		return classify("finishing run", err)
	}
	return expectOneRow(res, "finishing run", id)
}

func (s *SQLiteDatabase) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_uuid, operation, parameters, started_at, finished_at, status, summary
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify("listing runs", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var (
			r        model.Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UUID, &r.Operation, &r.Parameters, &started, &finished,
			&r.Status, &r.Summary); err != nil {
			return nil, classify("scanning run", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("listing runs", err)
	}
	return runs, nil
}

// Maintenance

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return classify("backing up database", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements catalog.Database interface
var _ catalog.Database = (*SQLiteDatabase)(nil)

// Row helpers

type scanner interface {
	Scan(dest ...any) error
}

func findMovie(ctx context.Context, q querier, where string, arg any) (*model.Movie, error) {
	row := q.QueryRowContext(ctx, "SELECT "+movieColumns+" FROM movies WHERE "+where, arg)
	m, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// scanMovie scans movieColumns followed by any extra destinations.
func scanMovie(row scanner, extra ...any) (*model.Movie, error) {
	var (
		m                model.Movie
		date             sql.NullString
		runID            sql.NullInt64
		created, updated string
	)
	dest := []any{
		&m.ID, &m.ExternalID, &m.Title, &m.OriginalTitle, &m.Overview, &date,
		&m.Budget, &m.Revenue, &m.Runtime, &m.Rating, &m.RatingCount, &m.Popularity,
		&m.Language, &m.Status, &m.Tagline, &m.Homepage,
		&runID, &m.SourceRef, &created, &updated,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, classify("scanning movie", err)
	}

	var err error
	if m.ReleaseDate, err = parseDate(date); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	m.SourceRunID = runID.Int64
	return &m, nil
}

func scanIDs(rows *sql.Rows, op string) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return ids, nil
}

func expectOneRow(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n != 1 {
		return fmt.Errorf("%s %d: %d rows affected, want 1", op, id, n)
	}
	return nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(model.DateLayout), Valid: true}
}

func parseDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(model.DateLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parsing release date %q: %w", s.String, err)
	}
	return &t, nil
}

func encodeValues(v model.Values) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding audit snapshot: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeValues(s sql.NullString) (model.Values, error) {
	if !s.Valid {
		return nil, nil
	}
	var v model.Values
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, fmt.Errorf("decoding audit snapshot: %w", err)
	}
	return v, nil
}
