package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the collection service
type Config struct {
	// Instagram Graph API settings
	Graph GraphConfig `yaml:"graph" json:"graph"`

	// Storage API (PostgREST) settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Collection pacing and batching
	Collection CollectionConfig `yaml:"collection" json:"collection"`

	// Recent-post sync settings
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// New-post detector settings
	Detector DetectorConfig `yaml:"detector" json:"detector"`

	// HTTP trigger server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GraphConfig holds Instagram Graph API configuration.
// Access tokens are stored per account and are not part of this config.
type GraphConfig struct {
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	APIVersion string        `yaml:"api_version" json:"api_version"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	PagePause  time.Duration `yaml:"page_pause" json:"page_pause"`
}

// StorageConfig holds the PostgREST storage backend configuration
type StorageConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	APIKey        string        `yaml:"api_key" json:"api_key"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay" json:"retry_delay"`
	CheckpointDir string        `yaml:"checkpoint_dir" json:"checkpoint_dir"`
}

// CollectionConfig holds pacing and batching for the daily and
// historical collectors
type CollectionConfig struct {
	AccountPause     time.Duration `yaml:"account_pause" json:"account_pause"`
	PostPause        time.Duration `yaml:"post_pause" json:"post_pause"`
	ChunkMetricPause time.Duration `yaml:"chunk_metric_pause" json:"chunk_metric_pause"`
	ChunkPause       time.Duration `yaml:"chunk_pause" json:"chunk_pause"`
	ChunkSize        int           `yaml:"chunk_size" json:"chunk_size"`
	CaptionLimit     int           `yaml:"caption_limit" json:"caption_limit"`
}

// SyncConfig holds recent-post sync defaults and the per-account
// refresh rate guard
type SyncConfig struct {
	WindowDays         int           `yaml:"window_days" json:"window_days"`
	MaxPosts           int           `yaml:"max_posts" json:"max_posts"`
	MinRefreshInterval time.Duration `yaml:"min_refresh_interval" json:"min_refresh_interval"`
}

// DetectorConfig holds new-post detector settings
type DetectorConfig struct {
	FallbackHours int    `yaml:"fallback_hours" json:"fallback_hours"`
	WatermarkFile string `yaml:"watermark_file" json:"watermark_file"`
}

// ServerConfig holds the HTTP trigger surface configuration
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	CollectionToken string        `yaml:"collection_token" json:"collection_token"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			BaseURL:    "https://graph.facebook.com",
			APIVersion: "v21.0",
			Timeout:    30 * time.Second,
			PagePause:  time.Second,
		},
		Storage: StorageConfig{
			Timeout:       30 * time.Second,
			MaxRetries:    3,
			RetryDelay:    2 * time.Second,
			CheckpointDir: ".checkpoints",
		},
		Collection: CollectionConfig{
			AccountPause:     time.Second,
			PostPause:        200 * time.Millisecond,
			ChunkMetricPause: 500 * time.Millisecond,
			ChunkPause:       2 * time.Second,
			ChunkSize:        25,
			CaptionLimit:     2000,
		},
		Sync: SyncConfig{
			WindowDays:         7,
			MaxPosts:           50,
			MinRefreshInterval: time.Minute,
		},
		Detector: DetectorConfig{
			FallbackHours: 8,
			WatermarkFile: ".checkpoints/post_detector_watermark.json",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("IGCOLLECTOR_GRAPH_BASE_URL"); baseURL != "" {
		c.Graph.BaseURL = baseURL
	}
	if version := os.Getenv("IGCOLLECTOR_GRAPH_API_VERSION"); version != "" {
		c.Graph.APIVersion = version
	}

	if storageURL := os.Getenv("IGCOLLECTOR_STORAGE_URL"); storageURL != "" {
		c.Storage.BaseURL = storageURL
	}
	if apiKey := os.Getenv("IGCOLLECTOR_STORAGE_API_KEY"); apiKey != "" {
		c.Storage.APIKey = apiKey
	}
	if dir := os.Getenv("IGCOLLECTOR_CHECKPOINT_DIR"); dir != "" {
		c.Storage.CheckpointDir = dir
	}

	if windowDays := os.Getenv("IGCOLLECTOR_SYNC_WINDOW_DAYS"); windowDays != "" {
		var val int
		fmt.Sscanf(windowDays, "%d", &val)
		if val > 0 {
			c.Sync.WindowDays = val
		}
	}
	if maxPosts := os.Getenv("IGCOLLECTOR_SYNC_MAX_POSTS"); maxPosts != "" {
		var val int
		fmt.Sscanf(maxPosts, "%d", &val)
		if val > 0 {
			c.Sync.MaxPosts = val
		}
	}

	if hours := os.Getenv("IGCOLLECTOR_DETECTOR_FALLBACK_HOURS"); hours != "" {
		var val int
		fmt.Sscanf(hours, "%d", &val)
		if val > 0 {
			c.Detector.FallbackHours = val
		}
	}

	if host := os.Getenv("IGCOLLECTOR_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("IGCOLLECTOR_SERVER_PORT"); port != "" {
		var val int
		fmt.Sscanf(port, "%d", &val)
		if val > 0 {
			c.Server.Port = val
		}
	}
	if token := os.Getenv("IGCOLLECTOR_COLLECTION_TOKEN"); token != "" {
		c.Server.CollectionToken = token
	}

	if logLevel := os.Getenv("IGCOLLECTOR_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("IGCOLLECTOR_LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".igcollector.yaml",
		".igcollector.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igcollector", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igcollector", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Graph.BaseURL == "" {
		errs = append(errs, errors.New("graph base URL is required"))
	}
	if c.Graph.APIVersion == "" {
		errs = append(errs, errors.New("graph API version is required"))
	}

	if c.Storage.BaseURL == "" {
		errs = append(errs, errors.New("storage base URL is required"))
	}
	if c.Storage.APIKey == "" {
		errs = append(errs, errors.New("storage API key is required"))
	}
	if c.Storage.MaxRetries < 0 {
		errs = append(errs, errors.New("storage max retries cannot be negative"))
	}

	if c.Collection.ChunkSize <= 0 {
		errs = append(errs, errors.New("collection chunk size must be positive"))
	}
	if c.Collection.CaptionLimit <= 0 {
		errs = append(errs, errors.New("caption limit must be positive"))
	}

	if c.Sync.WindowDays < 1 || c.Sync.WindowDays > 90 {
		errs = append(errs, errors.New("sync window days must be between 1 and 90"))
	}
	if c.Sync.MaxPosts < 1 || c.Sync.MaxPosts > 200 {
		errs = append(errs, errors.New("sync max posts must be between 1 and 200"))
	}

	if c.Detector.FallbackHours <= 0 {
		errs = append(errs, errors.New("detector fallback hours must be positive"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if storageURL, ok := flags["storage-url"].(string); ok && storageURL != "" {
		c.Storage.BaseURL = storageURL
	}
	if apiKey, ok := flags["storage-api-key"].(string); ok && apiKey != "" {
		c.Storage.APIKey = apiKey
	}
	if port, ok := flags["port"].(int); ok && port > 0 {
		c.Server.Port = port
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igcollector.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
