// Package app wires the catalog components from configuration and runs one
// CLI command as a tracked batch.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filmgov/internal/catalog"
	"filmgov/internal/config"
	"filmgov/internal/database"
	"filmgov/internal/encryption"
	"filmgov/internal/metrics"
	"filmgov/internal/model"
	"filmgov/internal/quality"
	"filmgov/internal/source"
	"filmgov/internal/vault"
)

// Options adjust how an App is constructed. The zero value is what the CLI
// uses.
type Options struct {
	// Mutating takes the writer lock for the lifetime of the App.
	Mutating bool
	// Parameters is recorded on the run row, e.g. the ingested file.
	Parameters string

	Clock  catalog.Clock
	IDs    catalog.IDGenerator
	Stderr io.Writer
}

// App is the application layer between the CLI and catalog.Service.
// It constructs all dependencies from config, exposes one method per
// command and records batch commands as runs. The caller must call Close.
type App struct {
	cfg       *config.Config
	db        catalog.Database
	vault     catalog.Vault
	encryptor catalog.Encryptor
	backups   *catalog.Backups
	service   *catalog.Service
	engine    *quality.Engine
	exporter  *metrics.Exporter
	clock     catalog.Clock
	logger    catalog.Logger
	op        *Operation
	lock      *writerLock
	logFile   *os.File
}

// NewApp creates a fully wired App from cfg. operation names the CLI command
// being run (e.g. "ingest", "retention").
func NewApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = catalog.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = catalog.UUIDGenerator{}
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	policy, err := quality.PolicyFromConfig(cfg.Assessment)
	if err != nil {
		return nil, fmt.Errorf("assessment policy: %w", err)
	}

	a := &App{
		cfg:      cfg,
		clock:    opts.Clock,
		exporter: metrics.NewExporter(),
	}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	if opts.Mutating && cfg.Database.Type != "memory" {
		if a.lock, err = acquireWriterLock(database.PathFor(cfg.Database, cfg.DatasetID) + ".lock"); err != nil {
			return nil, err
		}
	}

	if a.vault, err = vault.NewVaultFromConfig(ctx, cfg.Vault); err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption); err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if a.db, err = database.NewDatabaseFromConfig(cfg.Database, cfg.DatasetID); err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := a.db.CheckMigrations(); err != nil {
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	a.op = NewOperation(opts.IDs.New(), operation, opts.Parameters)
	logger, logFile, err := newLogger(cfg.LogDir, a.op.UUID, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a.logFile = logFile
	a.logger = &slogAdapter{l: logger.With("dataset", cfg.DatasetID)}

	a.backups = catalog.NewBackups(a.vault, a.encryptor, cfg.DatasetID, a.logger)
	a.service, err = catalog.NewService(a.db, a.logger, a.clock, catalog.Options{
		Coerce: catalog.CoerceOptions{
			GenreDelimiter:   cfg.Ingest.GenreDelimiter,
			KeywordDelimiter: cfg.Ingest.KeywordDelimiter,
			DateLayouts:      cfg.Ingest.DateLayouts,
		},
		Backups: a.backups,
	})
	if err != nil {
		return nil, fmt.Errorf("creating service: %w", err)
	}
	a.engine = quality.NewEngine(policy, a.logger)

	ok = true
	return a, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// RunID returns the database id of the current run, or 0 when the command
// is not tracked.
func (a *App) RunID() int64 { return a.op.ID }

// persistOperation saves the operation as a run, giving it an auto-increment
// ID. Only batch commands call it.
func (a *App) persistOperation(ctx context.Context) error {
	if a.op.Persisted() {
		return nil
	}
	run := a.op.run()
	run.StartedAt = a.clock.Now()
	saved, err := a.db.CreateRun(ctx, run)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	a.op.ID = saved.ID
	a.logger.Info("run started", "operation", a.op.Name, "run", saved.ID)
	return nil
}

// finish records summary on the run and marks it failed when err is set.
func (a *App) finish(summary any, err error) error {
	if summary != nil {
		if recErr := a.op.Record(summary); recErr != nil {
			a.logger.Warn("run summary not recorded", "error", recErr)
		}
	}
	if err != nil {
		a.op.Fail(err)
	}
	return err
}

// Ingest reads the CSV export at path and normalizes it into the live
// store. The report is returned even when the batch aborts.
func (a *App) Ingest(ctx context.Context, path string) (*catalog.IngestReport, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}

	src, err := source.Open(path)
	if err != nil {
		return nil, a.finish(nil, err)
	}
	defer src.Close()

	if err := a.service.UpdateCatalog(ctx, catalogValues(a.cfg.Catalog)); err != nil {
		return nil, a.finish(nil, err)
	}

	report, err := a.service.Ingest(ctx, a.op.ID, src)
	if report != nil {
		a.exporter.ObserveIngest(report)
	}
	a.writeMetrics()
	return report, a.finish(report, err)
}

func catalogValues(c config.CatalogConfig) map[string]string {
	return map[string]string{
		model.MetaName:          c.Name,
		model.MetaDescription:   c.Description,
		model.MetaSource:        c.Source,
		model.MetaUpdateCadence: c.UpdateCadence,
		model.MetaOwner:         c.Owner,
		model.MetaLicense:       c.License,
	}
}

// RunRetention executes the configured retention policy. A backup, when
// enabled, is stored with the run id as its version.
func (a *App) RunRetention(ctx context.Context) (*catalog.RetentionSummary, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	r := a.cfg.Retention
	summary, err := a.service.RunRetention(ctx, catalog.RetentionPolicy{
		CutoffYear:        r.CutoffYear,
		AuditHorizon:      r.AuditHorizon.Duration,
		ArchiveDuplicates: r.ArchiveDuplicates,
		Backup:            r.Backup,
	}, a.op.ID)
	return summary, a.finish(summary, err)
}

// Archive moves movies released before cutoffYear to the archive. A zero
// cutoffYear uses retention.cutoff_year.
func (a *App) Archive(ctx context.Context, cutoffYear int) (*catalog.ArchiveResult, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	if cutoffYear == 0 {
		cutoffYear = a.cfg.Retention.CutoffYear
	}
	res, err := a.service.Archive(ctx, cutoffYear)
	return res, a.finish(res, err)
}

// ArchiveDuplicates moves every duplicate movie but the oldest to the archive.
func (a *App) ArchiveDuplicates(ctx context.Context) (*catalog.ArchiveResult, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	res, err := a.service.ArchiveDuplicates(ctx)
	return res, a.finish(res, err)
}

// PruneAudit deletes audit entries older than horizon. A zero horizon uses
// retention.audit_horizon.
func (a *App) PruneAudit(ctx context.Context, horizon config.Duration) (int64, error) {
	if err := a.persistOperation(ctx); err != nil {
		return 0, err
	}
	if horizon.Duration == 0 {
		horizon = a.cfg.Retention.AuditHorizon
	}
	n, err := a.service.PruneAudit(ctx, horizon.Duration)
	return n, a.finish(map[string]int64{"audit_pruned": n}, err)
}

// Assess scores the live store as of now and exports the result when a
// metrics textfile is configured.
func (a *App) Assess(ctx context.Context) (*quality.Result, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	ds, err := a.service.Dataset(ctx)
	if err != nil {
		return nil, a.finish(nil, err)
	}
	now := a.clock.Now()
	result, err := a.engine.Assess(ctx, ds, now)
	if err != nil {
		return nil, a.finish(nil, err)
	}
	a.exporter.ObserveAssessment(result, now)
	a.writeMetrics()
	return result, a.finish(assessmentSummary(result), nil)
}

// assessmentSummary is the compact form of a result stored on the run row.
func assessmentSummary(r *quality.Result) map[string]any {
	scores := make(map[string]float64, len(r.Dimensions)+len(r.Governance))
	for name, s := range r.Dimensions {
		scores[name] = s.Score
	}
	for name, s := range r.Governance {
		scores[name] = s.Score
	}
	return map[string]any{
		"entities":           r.Entities,
		"overall_quality":    r.OverallQuality,
		"overall_governance": r.OverallGovernance,
		"classification":     r.Classification,
		"scores":             scores,
		"alerts":             len(r.Alerts),
	}
}

// writeMetrics exports the gauges when metrics.textfile_path is set. Failures
// are logged; they never fail the command.
func (a *App) writeMetrics() {
	path := a.cfg.Metrics.TextfilePath
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		a.logger.Warn("metrics not written", "path", path, "error", err)
		return
	}
	if err := a.exporter.WriteTextfile(path); err != nil {
		a.logger.Warn("metrics not written", "path", path, "error", err)
		return
	}
	a.logger.Debug("metrics written", "path", path)
}

// History returns the most recent runs, newest first.
func (a *App) History(ctx context.Context, limit int) ([]*model.Run, error) {
	return a.db.ListRuns(ctx, limit)
}

// Report computes the analytical summary of the live store. It is read-only
// and not recorded as a run.
func (a *App) Report(ctx context.Context, opts catalog.ReportOptions) (*catalog.Report, error) {
	r, err := a.service.Report(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.logger.Info("report computed", "movies", r.General.Movies, "genres", len(r.Genres))
	return r, nil
}

// AuditTrail returns the audit entries of one movie, oldest first.
func (a *App) AuditTrail(ctx context.Context, externalID string) ([]*model.AuditEntry, error) {
	m, err := a.db.FindMovieByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no live movie with external id %q", externalID)
	}
	return a.db.ListAuditEntries(ctx, m.ID)
}

// Backup stores an encrypted copy of the database with the run id as version.
func (a *App) Backup(ctx context.Context) (*catalog.BackupResult, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	res, err := a.service.Backup(ctx, a.op.ID)
	return res, a.finish(res, err)
}

// Restore downloads backup version (0 = latest), decrypts it with the private
// key unlocked by passphrase and writes it to dest. An empty dest writes
// next to the live database as <dataset>.restored.db; the live database is
// never replaced in place.
func (a *App) Restore(ctx context.Context, version int64, passphrase, dest string) (*catalog.BackupResult, string, error) {
	if dest == "" {
		dir := a.cfg.Database.DataDir
		if dir == "" {
			dir = a.cfg.BaseDir
		}
		dest = filepath.Join(dir, a.cfg.DatasetID+".restored.db")
	}
	if live := a.db.Path(); live != ":memory:" && sameFile(live, dest) {
		return nil, "", fmt.Errorf("refusing to restore over the live database %s", live)
	}
	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, "", fmt.Errorf("unlocking private key: %w", err)
	}
	res, err := a.backups.Restore(ctx, version, dc, dest)
	if err != nil {
		return nil, "", err
	}
	return res, dest, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// SetupKeys generates the backup key pair, sealing the private key with
// passphrase.
func (a *App) SetupKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}
	a.logger.Info("backup keys generated")
	return nil
}

// Close finalizes the run and closes all resources. For persisted runs the
// status and summary are written before the database closes.
func (a *App) Close() error {
	var firstErr error
	if a.db != nil && a.op != nil && a.op.Persisted() {
		err := a.db.FinishRun(context.Background(), a.op.ID, a.op.Status, a.op.Summary, a.clock.Now())
		if err != nil {
			firstErr = fmt.Errorf("finishing run: %w", err)
		}
		a.logger.Info("run finished", "run", a.op.ID, "status", a.op.Status)
	}
	if err := a.closeResources(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *App) closeResources() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		a.db = nil
	}
	if err := a.lock.release(); err != nil {
		errs = append(errs, err)
	}
	a.lock = nil
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return errors.Join(errs...)
}
