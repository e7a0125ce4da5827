package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for filmgov.
type Config struct {
	DatasetID  string           `toml:"dataset_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Ingest     IngestConfig     `toml:"ingest"`
	Retention  RetentionConfig  `toml:"retention"`
	Assessment AssessmentConfig `toml:"assessment"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// DatabaseConfig represents configuration for the live store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// IngestConfig controls how source rows are coerced.
type IngestConfig struct {
	GenreDelimiter   string   `toml:"genre_delimiter"`   // empty splits on whitespace
	KeywordDelimiter string   `toml:"keyword_delimiter"` // empty splits on whitespace
	DateLayouts      []string `toml:"date_layouts,omitempty"`
}

// RetentionConfig configures `filmgov retention run`.
type RetentionConfig struct {
	CutoffYear        int      `toml:"cutoff_year"`
	AuditHorizon      Duration `toml:"audit_horizon"`
	ArchiveDuplicates bool     `toml:"archive_duplicates"`
	Backup            bool     `toml:"backup"`
}

// AssessmentConfig holds the scoring policy.
type AssessmentConfig struct {
	RecentYears          int      `toml:"recent_years"`
	RetentionWindowYears int      `toml:"retention_window_years"`
	MinReliableVotes     int64    `toml:"min_reliable_votes"`
	RuntimeMaxMinutes    float64  `toml:"runtime_max_minutes"`
	BudgetMin            int64    `toml:"budget_min"`
	BudgetCeiling        int64    `toml:"budget_ceiling"`
	RevenueCeiling       int64    `toml:"revenue_ceiling"`
	ROIMinPercent        float64  `toml:"roi_min_percent"`
	ROIMaxPercent        float64  `toml:"roi_max_percent"`
	LossIsInconsistency  bool     `toml:"loss_is_inconsistency"`
	RequiredTagKinds     []string `toml:"required_tag_kinds"`

	ComplianceWeights ComplianceWeights  `toml:"compliance_weights"`
	AccuracyWeights   map[string]float64 `toml:"accuracy_weights,omitempty"`
	PersonalData      PersonalDataConfig `toml:"personal_data"`
}

// ComplianceWeights weights the compliance sub-checks.
type ComplianceWeights struct {
	Traceability float64 `toml:"traceability"`
	Retention    float64 `toml:"retention"`
	PersonalData float64 `toml:"personal_data"`
}

// PersonalDataConfig declares which fields may carry personal data and which
// keywords in free text indicate it.
type PersonalDataConfig struct {
	AllowedFields []string `toml:"allowed_fields"`
	Keywords      []string `toml:"keywords"`
}

// CatalogConfig is the dataset-level descriptive metadata.
type CatalogConfig struct {
	Name          string `toml:"name"`
	Description   string `toml:"description"`
	Source        string `toml:"source"`
	UpdateCadence string `toml:"update_cadence"`
	Owner         string `toml:"owner"`
	License       string `toml:"license"`
}

// VaultConfig represents configuration for the backup vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible endpoint, e.g. MinIO

	// Static credentials for S3-compatible endpoints; the default AWS
	// credential chain is used when unset.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for backups.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "none" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `toml:"textfile_path"` // empty disables export
}

// Duration is a time.Duration encoded as a string such as "8760h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default policy values.
const (
	DefaultCutoffYear           = 1980
	DefaultAuditHorizon         = 365 * 24 * time.Hour
	DefaultRecentYears          = 10
	DefaultRetentionWindowYears = 20
	DefaultMinReliableVotes     = 10
	DefaultRuntimeMaxMinutes    = 1000
	DefaultBudgetMin            = 1000
	DefaultBudgetCeiling        = 500_000_000
	DefaultRevenueCeiling       = 5_000_000_000
	DefaultROIMinPercent        = -100
	DefaultROIMaxPercent        = 10_000
)

// NewConfig creates a new Config with the provided values and defaults.
func NewConfig(datasetID, baseDir string) *Config {
	return &Config{
		DatasetID: datasetID,
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Retention: RetentionConfig{
			CutoffYear:   DefaultCutoffYear,
			AuditHorizon: Duration{DefaultAuditHorizon},
		},
		Assessment: DefaultAssessment(),
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "filmgov.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "filmgov.key"),
		},
	}
}

// DefaultAssessment returns the default scoring policy.
func DefaultAssessment() AssessmentConfig {
	return AssessmentConfig{
		RecentYears:          DefaultRecentYears,
		RetentionWindowYears: DefaultRetentionWindowYears,
		MinReliableVotes:     DefaultMinReliableVotes,
		RuntimeMaxMinutes:    DefaultRuntimeMaxMinutes,
		BudgetMin:            DefaultBudgetMin,
		BudgetCeiling:        DefaultBudgetCeiling,
		RevenueCeiling:       DefaultRevenueCeiling,
		ROIMinPercent:        DefaultROIMinPercent,
		ROIMaxPercent:        DefaultROIMaxPercent,
		RequiredTagKinds:     []string{"genre", "keyword"},
		ComplianceWeights:    ComplianceWeights{Traceability: 1, Retention: 1, PersonalData: 1},
		PersonalData: PersonalDataConfig{
			Keywords: []string{"cpf", "ssn", "social security number", "passport number", "phone number", "home address"},
		},
	}
}

// Validate reports configuration errors that would only surface mid-run.
func (c *Config) Validate() error {
	if c.DatasetID == "" {
		return fmt.Errorf("dataset_id is required")
	}
	if c.Retention.AuditHorizon.Duration < 0 {
		return fmt.Errorf("retention.audit_horizon must not be negative")
	}
	a := c.Assessment
	if a.RecentYears < 0 || a.RetentionWindowYears < 0 {
		return fmt.Errorf("assessment year windows must not be negative")
	}
	if a.ROIMinPercent > a.ROIMaxPercent {
		return fmt.Errorf("assessment.roi_min_percent %v exceeds roi_max_percent %v", a.ROIMinPercent, a.ROIMaxPercent)
	}
	w := a.ComplianceWeights
	if w.Traceability < 0 || w.Retention < 0 || w.PersonalData < 0 {
		return fmt.Errorf("assessment.compliance_weights must not be negative")
	}
	for name, v := range a.AccuracyWeights {
		if v < 0 {
			return fmt.Errorf("assessment.accuracy_weights.%s must not be negative", name)
		}
	}
	for _, kind := range a.RequiredTagKinds {
		if kind != "genre" && kind != "keyword" {
			return fmt.Errorf("assessment.required_tag_kinds: unknown tag kind %q", kind)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
