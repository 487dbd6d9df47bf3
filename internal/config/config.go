package config

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Search      SearchConfig      `yaml:"search"`
	Worker      WorkerConfig      `yaml:"worker"`
	Poller      PollerConfig      `yaml:"poller"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig contains object storage settings. Buckets are
// subdirectories of BaseDir for the disk backend.
type StorageConfig struct {
	BaseDir       string `yaml:"base_dir"`
	PublicBaseURL string `yaml:"public_base_url"`
	UploadsBucket string `yaml:"uploads_bucket"`
	ResultsBucket string `yaml:"results_bucket"`
	ThumbsBucket  string `yaml:"thumbnails_bucket"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings. An empty
// host disables search entirely.
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// WorkerConfig contains staging worker settings
type WorkerConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	StepDelayMillis     int `yaml:"step_delay_millis"`
	JobTimeoutSeconds   int `yaml:"job_timeout_seconds"`
}

// PollerConfig contains client-side job polling settings
type PollerConfig struct {
	InitialIntervalSeconds int `yaml:"initial_interval_seconds"`
	MaxIntervalSeconds     int `yaml:"max_interval_seconds"`
	MaxDurationSeconds     int `yaml:"max_duration_seconds"`
}

// MaintenanceConfig contains retention cleanup settings
type MaintenanceConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DailyRunTime       string `yaml:"daily_run_time"`
	JobRetentionDays   int    `yaml:"job_retention_days"`
	OrphanGraceDays    int    `yaml:"orphan_grace_days"`
	MaxDeletionsPerRun int    `yaml:"max_deletions_per_run"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8090",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Type: "postgres",
			Postgres: PostgresConfig{
				Host:     "db",
				Port:     5432,
				User:     "stage_user",
				Password: "stage_pass",
				Database: "stage_db",
				SSLMode:  "disable",
			},
		},
		Storage: StorageConfig{
			BaseDir:       "./data",
			PublicBaseURL: "http://localhost:8090/files",
			UploadsBucket: "stage-uploads",
			ResultsBucket: "stage-results",
			ThumbsBucket:  "stage-thumbnails",
		},
		Worker: WorkerConfig{
			PollIntervalSeconds: 3,
			StepDelayMillis:     500,
			JobTimeoutSeconds:   300,
		},
		Poller: PollerConfig{
			InitialIntervalSeconds: 2,
			MaxIntervalSeconds:     15,
			MaxDurationSeconds:     600,
		},
		Maintenance: MaintenanceConfig{
			Enabled:            true,
			DailyRunTime:       "03:00",
			JobRetentionDays:   30,
			OrphanGraceDays:    7,
			MaxDeletionsPerRun: 1000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			LogRequests: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so a partial config file stays usable
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides lets the deployment environment override file
// values without editing the config file.
func (c *Config) ApplyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Database.Type = getEnv("DATABASE_TYPE", c.Database.Type)
	c.Database.Postgres.Host = getEnv("DATABASE_HOST", c.Database.Postgres.Host)
	c.Database.Postgres.Password = getEnv("DATABASE_PASSWORD", c.Database.Postgres.Password)
	c.Database.MySQL.Host = getEnv("DATABASE_HOST", c.Database.MySQL.Host)
	c.Database.MySQL.Password = getEnv("DATABASE_PASSWORD", c.Database.MySQL.Password)
	c.Storage.BaseDir = getEnv("STORAGE_BASE_DIR", c.Storage.BaseDir)
	c.Storage.PublicBaseURL = getEnv("PUBLIC_BASE_URL", c.Storage.PublicBaseURL)
	c.Search.Meilisearch.Host = getEnv("MEILISEARCH_HOST", c.Search.Meilisearch.Host)
	c.Search.Meilisearch.APIKey = getEnv("MEILISEARCH_API_KEY", c.Search.Meilisearch.APIKey)
}

// getEnv は環境変数を取得し、空の場合はデフォルト値を返す
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "postgres", "mysql", "":
	default:
		return fmt.Errorf("unknown database type %q", c.Database.Type)
	}
	if c.Worker.PollIntervalSeconds <= 0 {
		return fmt.Errorf("worker poll_interval_seconds must be positive")
	}
	if c.Poller.MaxIntervalSeconds < c.Poller.InitialIntervalSeconds {
		return fmt.Errorf("poller max_interval_seconds must be >= initial_interval_seconds")
	}
	return nil
}

// GetPollInterval returns the worker queue poll interval
func (w WorkerConfig) GetPollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// GetStepDelay returns the delay between simulated rendering steps
func (w WorkerConfig) GetStepDelay() time.Duration {
	return time.Duration(w.StepDelayMillis) * time.Millisecond
}

// GetJobTimeout returns the per-job processing deadline
func (w WorkerConfig) GetJobTimeout() time.Duration {
	return time.Duration(w.JobTimeoutSeconds) * time.Second
}

// GetInitialInterval returns the first client poll delay
func (p PollerConfig) GetInitialInterval() time.Duration {
	return time.Duration(p.InitialIntervalSeconds) * time.Second
}

// GetMaxInterval returns the backoff cap for client polling
func (p PollerConfig) GetMaxInterval() time.Duration {
	return time.Duration(p.MaxIntervalSeconds) * time.Second
}

// GetMaxDuration returns the hard polling deadline
func (p PollerConfig) GetMaxDuration() time.Duration {
	return time.Duration(p.MaxDurationSeconds) * time.Second
}

// Watcher re-reads the config file when it changes on disk and hands the
// parsed result to onReload. Only tunables read through the callback
// pick up new values; connections established at startup are not
// re-dialed.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching path. onReload runs on the watcher goroutine.
func Watch(path string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go func() {
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := LoadConfig(event.Name)
				if err != nil {
					log.Printf("Config: reload of %s failed: %v", event.Name, err)
					continue
				}
				log.Printf("Config: reloaded %s", event.Name)
				onReload(cfg)
			case werr, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Printf("Config: watch error: %v", werr)
			case <-w.done:
				return
			}
		}
	}()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.watcher.Close()
}
