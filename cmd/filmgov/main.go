package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"filmgov/internal/app"
	"filmgov/internal/catalog"
	"filmgov/internal/config"
	"filmgov/internal/model"
	"filmgov/internal/quality"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation names the CLI command being run; mutating commands take the
// writer lock.
func newApp(cmd *cobra.Command, operation, parameters string, mutating bool) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cmd.Context(), cfg, operation, app.Options{
		Mutating:   mutating,
		Parameters: parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "filmgov",
	Short:         "Movie catalog normalization, retention and quality governance",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		datasetID, _ := cmd.Flags().GetString("dataset")
		if datasetID == "" {
			datasetID = uuid.New().String()
		}

		cfg := config.NewConfig(datasetID, defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Dataset ID: %s\n", datasetID)
		fmt.Printf("Base Dir:   %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		rows := [][]string{
			{"dataset_id", cfg.DatasetID},
			{"base_dir", cfg.BaseDir},
			{"log_dir", cfg.LogDir},
			{"database", cfg.Database.Type + " " + cfg.Database.DataDir},
			{"vault", cfg.Vault.Type + " " + cfg.Vault.Name},
			{"encryption", cfg.Encryption.Type},
			{"retention.cutoff_year", strconv.Itoa(cfg.Retention.CutoffYear)},
			{"retention.audit_horizon", cfg.Retention.AuditHorizon.String()},
			{"metrics.textfile_path", cfg.Metrics.TextfilePath},
		}
		fmt.Printf("Configuration from %s:\n", defaults.ConfigPath)
		fmt.Println(renderTable([]string{"Key", "Value"}, rows, nil))
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "keys-init", "", true)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.SetupKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Backup keys generated.")
		return nil
	},
}

// ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest CSV",
	Short: "Normalize a CSV export into the live store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ingest", args[0], true)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Ingest(cmd.Context(), args[0])
		if report != nil {
			printIngestReport(report)
		}
		if err != nil {
			return fmt.Errorf("ingest aborted: %w", err)
		}
		return nil
	},
}

func printIngestReport(r *catalog.IngestReport) {
	rows := [][]string{
		{"read", strconv.Itoa(r.Read)},
		{"created", strconv.Itoa(r.Created)},
		{"updated", strconv.Itoa(r.Updated)},
		{"skipped", strconv.Itoa(r.Skipped)},
	}
	for _, kind := range sortedKeys(r.IssueCounts) {
		rows = append(rows, []string{"issues " + kind, strconv.Itoa(r.IssueCounts[model.IssueKind(kind)])})
	}
	for _, field := range sortedKeys(r.SkipReasons) {
		rows = append(rows, []string{"skipped for " + field, strconv.Itoa(r.SkipReasons[field])})
	}
	fmt.Println(renderTable([]string{"Records", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

// retention command
var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Apply the retention policy",
}

var retentionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Archive old data, prune the audit log and optionally back up",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "retention", "", true)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.RunRetention(cmd.Context())
		if s != nil {
			rows := [][]string{
				{"archived", strconv.Itoa(s.Archived)},
				{"duplicates archived", strconv.Itoa(s.DuplicatesArchived)},
				{"audit entries pruned", strconv.FormatInt(s.AuditPruned, 10)},
			}
			if s.BackupVersion != 0 {
				rows = append(rows, []string{"backup version", strconv.FormatInt(s.BackupVersion, 10)})
			}
			fmt.Println(renderTable([]string{"Step", "Result"}, rows, []columnAlignment{alignLeft, alignRight}))
		}
		if err != nil {
			return fmt.Errorf("retention run failed: %w", err)
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move old or duplicate movies to the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cutoff, _ := cmd.Flags().GetInt("cutoff")
		duplicates, _ := cmd.Flags().GetBool("duplicates")

		params := fmt.Sprintf("cutoff=%d duplicates=%t", cutoff, duplicates)
		a, err := newApp(cmd, "archive", params, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if duplicates {
			res, err := a.ArchiveDuplicates(cmd.Context())
			if err != nil {
				return fmt.Errorf("archiving duplicates: %w", err)
			}
			fmt.Printf("Archived %d duplicate movie(s)\n", res.Moved)
			return nil
		}
		res, err := a.Archive(cmd.Context(), cutoff)
		if err != nil {
			return fmt.Errorf("archiving: %w", err)
		}
		fmt.Printf("Archived %d movie(s)\n", res.Moved)
		return nil
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune the audit log",
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit entries older than the horizon",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("horizon")
		var horizon config.Duration
		if raw != "" {
			if err := horizon.UnmarshalText([]byte(raw)); err != nil {
				return err
			}
		}

		a, err := newApp(cmd, "audit-prune", raw, true)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.PruneAudit(cmd.Context(), horizon)
		if err != nil {
			return fmt.Errorf("pruning audit log: %w", err)
		}
		fmt.Printf("Pruned %d audit entries\n", n)
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show EXTERNAL_ID",
	Short: "Show the audit trail of a movie",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "audit-show", args[0], false)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.AuditTrail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			changed, _ := json.Marshal(e.New)
			rows = append(rows, []string{
				e.Timestamp.Format("2006-01-02 15:04:05"),
				string(e.Operation),
				string(changed),
			})
		}
		fmt.Println(renderTable([]string{"Time", "Operation", "New"}, rows, nil))
		return nil
	},
}

// assess command
var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score the live store on quality and governance",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(cmd, "assess", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Assess(cmd.Context())
		if err != nil {
			return fmt.Errorf("assessment failed: %w", err)
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printAssessment(result)
		return nil
	},
}

func printAssessment(r *quality.Result) {
	score := func(s quality.DimensionScore) string {
		if s.NoData() {
			return "no data"
		}
		return strconv.FormatFloat(s.Score, 'f', 2, 64)
	}

	rows := make([][]string, 0, len(quality.Dimensions)+1)
	for _, name := range quality.Dimensions {
		rows = append(rows, []string{name, score(r.Dimensions[name])})
	}
	rows = append(rows, []string{"overall", fmt.Sprintf("%.2f (%s)", r.OverallQuality, r.Classification)})
	fmt.Println(renderTable([]string{"Quality", "Score"}, rows, []columnAlignment{alignLeft, alignRight}))

	rows = rows[:0]
	for _, name := range quality.GovernanceAreas {
		rows = append(rows, []string{name, score(r.Governance[name])})
	}
	rows = append(rows, []string{"overall", fmt.Sprintf("%.2f (%s)", r.OverallGovernance, r.GovernanceClassification)})
	fmt.Println(renderTable([]string{"Governance", "Score"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(r.Alerts) > 0 {
		rows = rows[:0]
		for _, al := range r.Alerts {
			rows = append(rows, []string{string(al.Level), al.Dimension, strconv.FormatFloat(al.Score, 'f', 2, 64)})
		}
		fmt.Println(renderTable([]string{"Alert", "Dimension", "Score"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
	}
	if len(r.Recommendations) > 0 {
		rows = rows[:0]
		for _, rec := range r.Recommendations {
			rows = append(rows, []string{string(rec.Priority), rec.Area})
		}
		fmt.Println(renderTable([]string{"Priority", "Improve"}, rows, nil))
	}
	fmt.Printf("%d movie(s) assessed at %s\n", r.Entities, r.ReferenceDate.Format(time.RFC3339))
}

// report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the live store: revenue, ROI, genres, keywords and decades",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		opts := catalog.DefaultReportOptions()
		opts.TopRevenue, _ = cmd.Flags().GetInt("top")
		opts.TopROI = opts.TopRevenue
		opts.TopKeywords, _ = cmd.Flags().GetInt("keywords")

		a, err := newApp(cmd, "report", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.Report(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("report failed: %w", err)
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}
		printReport(r)
		return nil
	},
}

func printReport(r *catalog.Report) {
	num := func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
	i64 := func(n int64) string { return strconv.FormatInt(n, 10) }

	g := r.General
	fmt.Println(renderTable([]string{"Overview", "Value"}, [][]string{
		{"movies", strconv.Itoa(g.Movies)},
		{"average budget", num(g.AvgBudget)},
		{"average revenue", num(g.AvgRevenue)},
		{"average rating", num(g.AvgRating)},
		{"average runtime", num(g.AvgRuntime)},
		{"revenue below budget", strconv.Itoa(g.LossMaking)},
	}, []columnAlignment{alignLeft, alignRight}))

	var rows [][]string
	for _, m := range r.TopRevenue {
		rows = append(rows, []string{m.Title, i64(m.Revenue), i64(m.Budget), i64(m.Profit)})
	}
	fmt.Println(renderTable([]string{"Top revenue", "Revenue", "Budget", "Profit"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))

	rows = rows[:0]
	for _, m := range r.TopROI {
		rows = append(rows, []string{m.Title, i64(m.Budget), i64(m.Revenue), num(m.ROIPercent)})
	}
	fmt.Println(renderTable([]string{"Top ROI", "Budget", "Revenue", "ROI %"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))

	rows = rows[:0]
	for _, b := range r.ROIBands {
		rows = append(rows, []string{b.Label, strconv.Itoa(b.Movies)})
	}
	fmt.Println(renderTable([]string{"ROI band", "Movies"}, rows, []columnAlignment{alignLeft, alignRight}))

	for _, section := range []struct {
		title string
		stats []catalog.TagStats
	}{{"Genre", r.Genres}, {"Keyword", r.Keywords}} {
		rows = rows[:0]
		for _, t := range section.stats {
			rows = append(rows, []string{t.Name, strconv.Itoa(t.Movies), num(t.AvgRating), num(t.AvgRevenue), num(t.AvgBudget)})
		}
		fmt.Println(renderTable([]string{section.title, "Movies", "Avg rating", "Avg revenue", "Avg budget"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}))
	}

	rows = rows[:0]
	for _, d := range r.Decades {
		rows = append(rows, []string{strconv.Itoa(d.Decade) + "s", strconv.Itoa(d.Movies), num(d.AvgBudget), num(d.AvgRevenue), num(d.AvgRating)})
	}
	fmt.Println(renderTable([]string{"Decade", "Movies", "Avg budget", "Avg revenue", "Avg rating"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}))
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			rows = append(rows, []string{
				"#" + strconv.FormatInt(r.ID, 10),
				r.Operation,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				duration,
				r.Parameters,
			})
		}
		fmt.Println(renderTable(
			[]string{"Run", "Operation", "Started", "Status", "Duration", "Parameters"},
			rows,
			[]columnAlignment{alignRight},
		))
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Store an encrypted copy of the database in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "backup", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Backup(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Stored backup version %d (%d bytes)\n", res.Version, res.Size)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download and decrypt a database backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt64("version")
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd, "restore", strconv.FormatInt(version, 10), false)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		res, path, err := a.Restore(cmd.Context(), version, passphrase, output)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored backup version %d to %s\n", res.Version, path)
		return nil
	},
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("dataset", "", "Dataset id (default: a new UUID)")

	keysCmd.AddCommand(keysInitCmd)
	retentionCmd.AddCommand(retentionRunCmd)
	auditCmd.AddCommand(auditPruneCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditPruneCmd.Flags().String("horizon", "", "Age beyond which entries are deleted, e.g. 8760h (default: retention.audit_horizon)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(retentionCmd)
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().Int("cutoff", 0, "Archive movies released before this year (default: retention.cutoff_year)")
	archiveCmd.Flags().Bool("duplicates", false, "Archive duplicate movies instead of old ones")
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(assessCmd)
	assessCmd.Flags().Bool("json", false, "Print the full result as JSON")
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().Bool("json", false, "Print the full report as JSON")
	reportCmd.Flags().Int("top", 10, "Rows in the revenue and ROI rankings")
	reportCmd.Flags().Int("keywords", 15, "Number of keywords to show")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().Int64("version", 0, "Backup version to restore (default: latest)")
	restoreCmd.Flags().StringP("output", "o", "", "Destination file (default: <data_dir>/<dataset>.restored.db)")
}
