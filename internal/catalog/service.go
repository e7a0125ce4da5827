package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"filmgov/internal/model"
)

// RecordSource yields raw records one at a time. Next returns io.EOF after
// the last record.
type RecordSource interface {
	Next(ctx context.Context) (model.RawRecord, error)
	// Name describes the source for dataset metadata, e.g. a file path.
	Name() string
}

// SliceSource is a RecordSource over an in-memory slice.
type SliceSource struct {
	name    string
	records []model.RawRecord
	pos     int
}

// NewSliceSource creates a SliceSource named name.
func NewSliceSource(name string, records []model.RawRecord) *SliceSource {
	return &SliceSource{name: name, records: records}
}

func (s *SliceSource) Next(ctx context.Context) (model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.RawRecord{}, err
	}
	if s.pos >= len(s.records) {
		return model.RawRecord{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *SliceSource) Name() string { return s.name }

// IngestReport summarizes an ingest batch. When the batch aborts it still
// describes everything committed before the abort.
type IngestReport struct {
	Read    int `json:"read"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`

	// IssueCounts counts issues by kind.
	IssueCounts map[model.IssueKind]int `json:"issue_counts"`
	// SkipReasons counts rejected records by the field that rejected them.
	SkipReasons map[string]int          `json:"skip_reasons"`
	Issues      []model.ValidationIssue `json:"-"`
}

func newIngestReport() *IngestReport {
	return &IngestReport{
		IssueCounts: make(map[model.IssueKind]int),
		SkipReasons: make(map[string]int),
	}
}

func (r *IngestReport) add(n *Normalized) {
	r.Issues = append(r.Issues, n.Issues...)
	for _, issue := range n.Issues {
		r.IssueCounts[issue.Kind]++
	}
	switch {
	case n.Skipped():
		r.Skipped++
		for _, issue := range n.Issues {
			if issue.Rejects() {
				r.SkipReasons[issue.Field]++
				break
			}
		}
	case n.Operation == model.AuditCreate:
		r.Created++
	case n.Operation == model.AuditUpdate:
		r.Updated++
	}
}

// ArchiveResult reports how many movies an archive pass moved.
type ArchiveResult struct {
	Moved int `json:"moved"`
}

// RetentionPolicy configures one retention run.
type RetentionPolicy struct {
	CutoffYear        int
	AuditHorizon      time.Duration
	ArchiveDuplicates bool
	Backup            bool
}

// RetentionSummary is the outcome of a retention run.
type RetentionSummary struct {
	Archived           int       `json:"archived"`
	DuplicatesArchived int       `json:"duplicates_archived"`
	AuditPruned        int64     `json:"audit_pruned"`
	BackupVersion      int64     `json:"backup_version,omitempty"`
	ExecutedAt         time.Time `json:"executed_at"`
}

// Options configures a Service.
type Options struct {
	Coerce    CoerceOptions
	CacheSize int
	// Backups is required for Backup and for retention runs that back up.
	Backups *Backups
}

// Service is the single writer over the live store. Writes take an exclusive
// lock; reads of the dataset wait for in-progress writes.
type Service struct {
	mu         sync.RWMutex
	db         Database
	dict       *Dictionary
	normalizer *Normalizer
	archiver   *Archiver
	backups    *Backups
	logger     Logger
	clock      Clock
}

// NewService creates a Service over db.
func NewService(db Database, logger Logger, clock Clock, opts Options) (*Service, error) {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	dict, err := NewDictionary(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	audit := NewAuditRecorder(clock)
	return &Service{
		db:         db,
		dict:       dict,
		normalizer: NewNormalizer(dict, audit, clock, opts.Coerce),
		archiver:   NewArchiver(audit, clock),
		backups:    opts.Backups,
		logger:     logger,
		clock:      clock,
	}, nil
}

// Ingest normalizes every record from src, one transaction per record.
// Record-level issues are reported and never abort the batch. Storage
// failures and invariant violations abort it with a *BatchError; records
// committed before the abort stay committed.
func (s *Service) Ingest(ctx context.Context, runID int64, src RecordSource) (*IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := newIngestReport()
	processed := 0
	abort := func(err error) (*IngestReport, error) {
		s.logger.Error("ingest aborted", "processed", processed, "error", err)
		return report, &BatchError{Operation: "ingest", Processed: processed, Err: err}
	}

	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return abort(fmt.Errorf("reading %s: %w", src.Name(), err))
		}
		report.Read++

		var res *Normalized
		err = s.db.WithTx(ctx, func(tx Tx) error {
			var err error
			res, err = s.normalizer.Normalize(ctx, tx, rec, runID)
			return err
		})
		if err != nil {
			s.dict.Discard()
			return abort(storageError(fmt.Sprintf("normalizing %s", rec.SourceRef), err))
		}
		s.dict.Commit()
		processed++

		report.add(res)
		for _, issue := range res.Issues {
			s.logger.Debug("validation issue", "ref", issue.SourceRef, "issue", issue.String())
		}
	}

	if err := s.recordIngest(ctx, src.Name()); err != nil {
		return abort(err)
	}

	s.logger.Info("ingest complete",
		"read", report.Read,
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped)
	return report, nil
}

func (s *Service) recordIngest(ctx context.Context, source string) error {
	version, err := s.db.SchemaVersion()
	if err != nil {
		return storageError("reading schema version", err)
	}
	now := s.clock.Now()
	values := map[string]string{
		model.MetaSchemaVersion:  strconv.FormatUint(uint64(version), 10),
		model.MetaLastIngestedAt: now.Format(time.RFC3339),
	}
	if source != "" {
		values[model.MetaSource] = source
	}
	if err := s.db.SetMetadata(ctx, values, now); err != nil {
		return storageError("recording dataset metadata", err)
	}
	return nil
}

// UpdateCatalog stores dataset-level descriptive metadata. Empty values are
// ignored so unset configuration never clears recorded entries.
func (s *Service) UpdateCatalog(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			set[k] = v
		}
	}
	if len(set) == 0 {
		return nil
	}
	if err := s.db.SetMetadata(ctx, set, s.clock.Now()); err != nil {
		return storageError("updating catalog metadata", err)
	}
	return nil
}

// Archive moves every live movie released before cutoffYear to the archive
// with reason OLD_DATA. Undated movies are never archived.
func (s *Service) Archive(ctx context.Context, cutoffYear int) (*ArchiveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archiveOld(ctx, cutoffYear)
}

func (s *Service) archiveOld(ctx context.Context, cutoffYear int) (*ArchiveResult, error) {
	ids, err := s.db.ListArchiveCandidates(ctx, cutoffYear)
	if err != nil {
		return nil, storageError("listing archive candidates", err)
	}
	moved, err := s.archiveEach(ctx, "archive", ids, model.ReasonOldData)
	res := &ArchiveResult{Moved: moved}
	if err != nil {
		return res, err
	}
	s.logger.Info("archive complete", "cutoff_year", cutoffYear, "moved", moved)
	return res, nil
}

// ArchiveDuplicates moves every movie sharing a DuplicateKey with an older
// movie to the archive with reason DUPLICATE. The lowest id of each group stays live.
func (s *Service) ArchiveDuplicates(ctx context.Context) (*ArchiveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archiveDuplicates(ctx)
}

func (s *Service) archiveDuplicates(ctx context.Context) (*ArchiveResult, error) {
	movies, err := s.db.ListMovies(ctx)
	if err != nil {
		return nil, storageError("listing movies", err)
	}
	moved, err := s.archiveEach(ctx, "archive duplicates", DuplicateIDs(movies), model.ReasonDuplicate)
	res := &ArchiveResult{Moved: moved}
	if err != nil {
		return res, err
	}
	s.logger.Info("duplicate archive complete", "moved", moved)
	return res, nil
}

// archiveEach archives ids one transaction at a time.
func (s *Service) archiveEach(ctx context.Context, op string, ids []int64, reason model.ArchiveReason) (int, error) {
	moved := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return moved, &BatchError{Operation: op, Processed: moved, Err: err}
		}
		var ok bool
		err := s.db.WithTx(ctx, func(tx Tx) error {
			var err error
			ok, err = s.archiver.ArchiveMovie(ctx, tx, id, reason)
			return err
		})
		if err != nil {
			err = storageError(fmt.Sprintf("archiving movie %d", id), err)
			s.logger.Error(op+" aborted", "processed", moved, "error", err)
			return moved, &BatchError{Operation: op, Processed: moved, Err: err}
		}
		if ok {
			moved++
			s.logger.Debug("movie archived", "id", id, "reason", reason)
		}
	}
	return moved, nil
}

// PruneAudit deletes audit entries older than horizon. Pruning is not
// itself audited.
func (s *Service) PruneAudit(ctx context.Context, horizon time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneAudit(ctx, horizon)
}

func (s *Service) pruneAudit(ctx context.Context, horizon time.Duration) (int64, error) {
	if horizon <= 0 {
		return 0, fmt.Errorf("audit horizon must be positive, got %s", horizon)
	}
	before := s.clock.Now().Add(-horizon)
	n, err := s.db.PruneAuditEntries(ctx, before)
	if err != nil {
		return 0, storageError("pruning audit log", err)
	}
	s.logger.Info("audit log pruned", "before", before.Format(time.RFC3339), "deleted", n)
	return n, nil
}

// Backup stores a copy of the database in the vault as version. It holds
// the read lock: VACUUM INTO only reads, so it waits for a running batch
// and may overlap with assessments.
func (s *Service) Backup(ctx context.Context, version int64) (*BackupResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backup(ctx, version)
}

func (s *Service) backup(ctx context.Context, version int64) (*BackupResult, error) {
	if s.backups == nil {
		return nil, errors.New("backups are not configured")
	}
	return s.backups.Save(ctx, s.db, version)
}

// RunRetention archives old movies, optionally archives duplicates, prunes
// the audit log and optionally backs up, in that order. version is used as
// the backup version. The steps run under one write lock.
func (s *Service) RunRetention(ctx context.Context, policy RetentionPolicy, version int64) (*RetentionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := &RetentionSummary{ExecutedAt: s.clock.Now()}

	archived, err := s.archiveOld(ctx, policy.CutoffYear)
	if archived != nil {
		summary.Archived = archived.Moved
	}
	if err != nil {
		return summary, err
	}

	if policy.ArchiveDuplicates {
		dups, err := s.archiveDuplicates(ctx)
		if dups != nil {
			summary.DuplicatesArchived = dups.Moved
		}
		if err != nil {
			return summary, err
		}
	}

	if summary.AuditPruned, err = s.pruneAudit(ctx, policy.AuditHorizon); err != nil {
		return summary, err
	}

	if policy.Backup {
		res, err := s.backup(ctx, version)
		if err != nil {
			return summary, err
		}
		summary.BackupVersion = res.Version
	}
	return summary, nil
}

// Dataset returns a read-only snapshot of the live store. It waits for any
// in-progress write to finish.
func (s *Service) Dataset(ctx context.Context) (*model.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, err := s.db.LoadDataset(ctx)
	if err != nil {
		return nil, storageError("loading dataset", err)
	}
	return ds, nil
}
