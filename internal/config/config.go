// Package config loads the archiver configuration from an optional YAML file
// with ARCHIVER_* environment overrides on top. Environment variables always
// win, so containerized deployments can run without a config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Destination and state backend names accepted in the config.
const (
	BackendDrive     = "drive"
	BackendGCS       = "gcs"
	BackendFile      = "file"
	BackendFirestore = "firestore"
)

// Config is the full runtime configuration.
type Config struct {
	Zoom        ZoomConfig        `yaml:"zoom"`
	Destination DestinationConfig `yaml:"destination"`
	State       StateConfig       `yaml:"state"`
	Sync        SyncConfig        `yaml:"sync"`
	Retention   RetentionConfig   `yaml:"retention"`
}

// ZoomConfig holds the server-to-server OAuth app credentials.
type ZoomConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AccountID    string `yaml:"account_id"`
	// BaseURL and TokenURL are only overridden in tests.
	BaseURL  string `yaml:"base_url"`
	TokenURL string `yaml:"token_url"`
}

// DestinationConfig selects and configures the archive backend.
type DestinationConfig struct {
	Backend string      `yaml:"backend"`
	Drive   DriveConfig `yaml:"drive"`
	GCS     GCSConfig   `yaml:"gcs"`
}

// DriveConfig points at the service account key and the parent folder all
// archived years live under.
type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	RootFolderID    string `yaml:"root_folder_id"`
}

// GCSConfig names the archive bucket.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
}

// StateConfig selects and configures the run-state backend.
type StateConfig struct {
	Backend   string          `yaml:"backend"`
	Dir       string          `yaml:"dir"`
	Firestore FirestoreConfig `yaml:"firestore"`
}

// FirestoreConfig locates the state collection.
type FirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

// SyncConfig tunes the incremental window.
type SyncConfig struct {
	// LookbackDays is how far back incremental runs reach.
	LookbackDays int `yaml:"lookback_days"`
	// FloorDate is the window start for the very first run. Zoom's own
	// lookback cap may truncate it silently; that is a documented provider
	// limitation, not something this tool works around.
	FloorDate  string `yaml:"floor_date"`
	StagingDir string `yaml:"staging_dir"`
}

// RetentionConfig tunes provider-side deletion.
type RetentionConfig struct {
	Days int `yaml:"days"`
	// RequireArchived restricts deletion to recordings present in the
	// ledger, protecting against retention running ahead of sync. Off by
	// default to match historical behavior.
	RequireArchived bool `yaml:"require_archived"`
}

// Defaults matching the constants the archiver has always used.
const (
	DefaultLookbackDays  = 60
	DefaultRetentionDays = 365
	DefaultFloorDate     = "1970-01-01"
	DefaultStagingDir    = "downloads"
	DefaultStateDir      = "."
	DefaultCollection    = "processed_recordings"
)

// ApplyDefaults fills in every unset field that has a sensible default.
func ApplyDefaults(cfg *Config) {
	if cfg.Destination.Backend == "" {
		cfg.Destination.Backend = BackendDrive
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = BackendFile
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = DefaultStateDir
	}
	if cfg.State.Firestore.Collection == "" {
		cfg.State.Firestore.Collection = DefaultCollection
	}
	if cfg.Sync.LookbackDays == 0 {
		cfg.Sync.LookbackDays = DefaultLookbackDays
	}
	if cfg.Sync.FloorDate == "" {
		cfg.Sync.FloorDate = DefaultFloorDate
	}
	if cfg.Sync.StagingDir == "" {
		cfg.Sync.StagingDir = DefaultStagingDir
	}
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = DefaultRetentionDays
	}
}

// Load reads the YAML file at path (skipped entirely when path is empty or
// the default file does not exist), applies defaults, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides layers ARCHIVER_* environment variables over the file
// values. Variables follow ARCHIVER_SECTION_FIELD naming.
func applyEnvOverrides(cfg *Config) {
	setStr := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setStr("ARCHIVER_ZOOM_CLIENT_ID", &cfg.Zoom.ClientID)
	setStr("ARCHIVER_ZOOM_CLIENT_SECRET", &cfg.Zoom.ClientSecret)
	setStr("ARCHIVER_ZOOM_ACCOUNT_ID", &cfg.Zoom.AccountID)
	setStr("ARCHIVER_DESTINATION_BACKEND", &cfg.Destination.Backend)
	setStr("ARCHIVER_DRIVE_CREDENTIALS_FILE", &cfg.Destination.Drive.CredentialsFile)
	setStr("ARCHIVER_DRIVE_ROOT_FOLDER_ID", &cfg.Destination.Drive.RootFolderID)
	setStr("ARCHIVER_GCS_BUCKET", &cfg.Destination.GCS.Bucket)
	setStr("ARCHIVER_STATE_BACKEND", &cfg.State.Backend)
	setStr("ARCHIVER_STATE_DIR", &cfg.State.Dir)
	setStr("ARCHIVER_FIRESTORE_PROJECT_ID", &cfg.State.Firestore.ProjectID)
	setStr("ARCHIVER_FIRESTORE_COLLECTION", &cfg.State.Firestore.Collection)
	setStr("ARCHIVER_SYNC_FLOOR_DATE", &cfg.Sync.FloorDate)
	setStr("ARCHIVER_SYNC_STAGING_DIR", &cfg.Sync.StagingDir)

	if val := os.Getenv("ARCHIVER_SYNC_LOOKBACK_DAYS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Sync.LookbackDays = n
		}
	}
	if val := os.Getenv("ARCHIVER_RETENTION_DAYS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Retention.Days = n
		}
	}
	if val := os.Getenv("ARCHIVER_RETENTION_REQUIRE_ARCHIVED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Retention.RequireArchived = b
		}
	}
}

// Validate rejects configurations the engines cannot run with.
func Validate(cfg *Config) error {
	if cfg.Zoom.ClientID == "" || cfg.Zoom.ClientSecret == "" || cfg.Zoom.AccountID == "" {
		return fmt.Errorf("zoom client_id, client_secret and account_id must all be set")
	}
	switch cfg.Destination.Backend {
	case BackendDrive:
		if cfg.Destination.Drive.RootFolderID == "" {
			return fmt.Errorf("destination.drive.root_folder_id must be set for the drive backend")
		}
	case BackendGCS:
		if cfg.Destination.GCS.Bucket == "" {
			return fmt.Errorf("destination.gcs.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown destination backend %q (want %q or %q)",
			cfg.Destination.Backend, BackendDrive, BackendGCS)
	}
	switch cfg.State.Backend {
	case BackendFile:
		if cfg.State.Dir == "" {
			return fmt.Errorf("state.dir must be set for the file backend")
		}
	case BackendFirestore:
		if cfg.State.Firestore.ProjectID == "" {
			return fmt.Errorf("state.firestore.project_id must be set for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown state backend %q (want %q or %q)",
			cfg.State.Backend, BackendFile, BackendFirestore)
	}
	if cfg.Sync.LookbackDays <= 0 {
		return fmt.Errorf("sync.lookback_days must be positive, got %d", cfg.Sync.LookbackDays)
	}
	if cfg.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be positive, got %d", cfg.Retention.Days)
	}
	if _, err := cfg.Sync.Floor(); err != nil {
		return fmt.Errorf("sync.floor_date: %w", err)
	}
	return nil
}

// Floor parses the configured first-run floor date.
func (s SyncConfig) Floor() (time.Time, error) {
	t, err := time.Parse("2006-01-02", s.FloorDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid floor date %q: %w", s.FloorDate, err)
	}
	return t, nil
}

// Lookback returns the incremental window length as a duration.
func (s SyncConfig) Lookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}

// Period returns the retention window length as a duration.
func (r RetentionConfig) Period() time.Duration {
	return time.Duration(r.Days) * 24 * time.Hour
}
