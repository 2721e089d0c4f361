package config

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spdl/spdl/internal/constants"
)

// Proxy modes accepted by proxy_mode / --proxy-mode.
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

// Config represents the SpDL configuration
type Config struct {
	// Worker settings
	Workers int

	// Output layout
	OutputDir string // parent directory chosen by the user
	Subfolder string // created under OutputDir for every run

	// External tools
	SpotDLPath     string
	FFmpegPath     string
	Format         string
	OutputTemplate string
	TimeoutSeconds int

	// Retry settings
	MaxRetries          int // extra attempts per failed track
	RetryAfterSuccesses int // deferred retries are re-dispatched after this many successes

	// LaunchRate caps spotdl starts per second across workers; 0 disables pacing
	LaunchRate float64

	// Batch options
	DeleteEmptyDirs bool
	SkipCompleted   bool
	StateFile       string // resume archive, defaults to <output root>/.spdl-state.csv

	// Application log file (rotated)
	LogFile string

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted; SPDL_PROXY_PASSWORD
	NoProxy       string // Comma-separated list of hosts to bypass proxy

	// Library publish
	UploadTarget string // s3://bucket/prefix or azblob://...
	S3Region     string
	S3Endpoint   string

	// Error log carries the spotdl failure reason next to each track
	DetailedLogging bool

	// Desktop notification when a batch finishes
	Notify bool
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Workers:             constants.DefaultWorkers,
		OutputDir:           defaultOutputDir(),
		Subfolder:           constants.DefaultOutputFolderName,
		SpotDLPath:          constants.SpotDLCommand,
		FFmpegPath:          constants.FFmpegCommand,
		Format:              constants.DefaultAudioFormat,
		OutputTemplate:      constants.OutputTemplate,
		TimeoutSeconds:      int(constants.DownloadTimeout / time.Second),
		MaxRetries:          constants.MaxRetries,
		RetryAfterSuccesses: constants.RetryAfterSuccessCount,
		DeleteEmptyDirs:     true,
		ProxyMode:           ProxyModeNone,
	}
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Music")
}

// LoadConfigCSV loads configuration from a CSV file
// CSV format: key,value pairs
func LoadConfigCSV(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if config doesn't exist
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read config CSV: %w", err)
	}

	// Parse key-value pairs
	for i, record := range records {
		if i == 0 {
			// Skip header row if it looks like a header
			if len(record) >= 2 && strings.ToLower(record[0]) == "key" {
				continue
			}
		}

		if len(record) < 2 {
			continue
		}

		key := strings.TrimSpace(strings.ToLower(record[0]))
		value := strings.TrimSpace(record[1])

		cfg.setValue(key, value)
	}

	return cfg, nil
}

func parseBool(value string) bool {
	v := strings.ToLower(value)
	return v == "true" || v == "1" || v == "yes"
}

// SaveConfigCSV saves configuration to a CSV file
// CSV format: key,value pairs
func SaveConfigCSV(cfg *Config, path string) error {
	// Ensure parent directory exists (fixes Windows issue where directory may not exist)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	if err := writer.Write([]string{"key", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// SECURITY: proxy_password is intentionally NOT saved to config files
	for _, record := range cfg.Records() {
		// Only write non-empty values to keep file clean
		if record[1] == "" {
			continue
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Records returns the persisted key/value pairs in file order.
// Booleans are always written because some default to true.
func (c *Config) Records() [][]string {
	port := ""
	if c.ProxyPort > 0 {
		port = strconv.Itoa(c.ProxyPort)
	}
	launchRate := ""
	if c.LaunchRate > 0 {
		launchRate = strconv.FormatFloat(c.LaunchRate, 'f', -1, 64)
	}
	return [][]string{
		{"workers", strconv.Itoa(c.Workers)},
		{"output_dir", c.OutputDir},
		{"subfolder", c.Subfolder},
		{"spotdl_path", c.SpotDLPath},
		{"ffmpeg_path", c.FFmpegPath},
		{"format", c.Format},
		{"output_template", c.OutputTemplate},
		{"timeout_seconds", strconv.Itoa(c.TimeoutSeconds)},
		{"max_retries", strconv.Itoa(c.MaxRetries)},
		{"retry_after_successes", strconv.Itoa(c.RetryAfterSuccesses)},
		{"launch_rate", launchRate},
		{"delete_empty_dirs", strconv.FormatBool(c.DeleteEmptyDirs)},
		{"skip_completed", strconv.FormatBool(c.SkipCompleted)},
		{"state_file", c.StateFile},
		{"log_file", c.LogFile},
		{"proxy_mode", c.ProxyMode},
		{"proxy_host", c.ProxyHost},
		{"proxy_port", port},
		{"proxy_user", c.ProxyUser},
		{"no_proxy", c.NoProxy},
		{"upload_target", c.UploadTarget},
		{"s3_region", c.S3Region},
		{"s3_endpoint", c.S3Endpoint},
		{"detailed_logging", strconv.FormatBool(c.DetailedLogging)},
		{"notify", strconv.FormatBool(c.Notify)},
	}
}

// Set assigns a single key, used by `config set`.
func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "proxy_password" {
		return fmt.Errorf("proxy_password cannot be stored in the config file; set SPDL_PROXY_PASSWORD")
	}
	if !c.setValue(key, strings.TrimSpace(value)) {
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// setValue parses one key/value pair into c. It reports whether the key is known.
// Unparseable numbers leave the current value in place.
func (c *Config) setValue(key, value string) bool {
	switch key {
	case "workers":
		if v, err := strconv.Atoi(value); err == nil {
			c.Workers = v
		}
	case "output_dir":
		c.OutputDir = value
	case "subfolder":
		c.Subfolder = value
	case "spotdl_path":
		c.SpotDLPath = value
	case "ffmpeg_path":
		c.FFmpegPath = value
	case "format":
		c.Format = strings.ToLower(value)
	case "output_template":
		c.OutputTemplate = value
	case "timeout_seconds":
		if v, err := strconv.Atoi(value); err == nil {
			c.TimeoutSeconds = v
		}
	case "max_retries":
		if v, err := strconv.Atoi(value); err == nil {
			c.MaxRetries = v
		}
	case "retry_after_successes":
		if v, err := strconv.Atoi(value); err == nil {
			c.RetryAfterSuccesses = v
		}
	case "launch_rate":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			c.LaunchRate = v
		}
	case "delete_empty_dirs":
		c.DeleteEmptyDirs = parseBool(value)
	case "skip_completed":
		c.SkipCompleted = parseBool(value)
	case "state_file":
		c.StateFile = value
	case "log_file":
		c.LogFile = value
	case "proxy_mode":
		c.ProxyMode = value
	case "proxy_host":
		c.ProxyHost = value
	case "proxy_port":
		if v, err := strconv.Atoi(value); err == nil {
			c.ProxyPort = v
		}
	case "proxy_user":
		c.ProxyUser = value
	case "proxy_password":
		// SECURITY: passwords come from SPDL_PROXY_PASSWORD only
		if value != "" {
			log.Printf("[WARN] proxy_password in config file is ignored for security - use SPDL_PROXY_PASSWORD")
		}
	case "no_proxy":
		c.NoProxy = value
	case "upload_target":
		c.UploadTarget = value
	case "s3_region":
		c.S3Region = value
	case "s3_endpoint":
		c.S3Endpoint = value
	case "detailed_logging":
		c.DetailedLogging = parseBool(value)
	case "notify":
		c.Notify = parseBool(value)
	default:
		return false
	}
	return true
}

// Overrides carries command-line values. Zero values and nil pointers leave
// the configured value untouched.
type Overrides struct {
	Workers         int
	OutputDir       string
	Subfolder       string
	SpotDLPath      string
	Format          string
	Timeout         time.Duration
	MaxRetries      *int
	LaunchRate      float64
	Notify          *bool
	DeleteEmptyDirs *bool
	SkipCompleted   *bool
	StateFile       string
	LogFile         string
	ProxyMode       string
	ProxyHost       string
	ProxyPort       int
	UploadTarget    string
}

// MergeWithFlags merges config with command-line flags and environment variables
// Priority: flags > environment > config file > defaults
func (c *Config) MergeWithFlags(o Overrides) {
	// Environment
	if v := os.Getenv("SPDL_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("SPDL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("SPDL_SPOTDL_PATH"); v != "" {
		c.SpotDLPath = v
	}
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && c.ProxyHost == "" {
		c.parseProxyURL(envProxy)
	}
	if v := os.Getenv("SPDL_PROXY_PASSWORD"); v != "" {
		c.ProxyPassword = v
	}

	// Command-line flags (highest priority)
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
	if o.Subfolder != "" {
		c.Subfolder = o.Subfolder
	}
	if o.SpotDLPath != "" {
		c.SpotDLPath = o.SpotDLPath
	}
	if o.Format != "" {
		c.Format = strings.ToLower(o.Format)
	}
	if o.Timeout > 0 {
		c.TimeoutSeconds = int(o.Timeout / time.Second)
	}
	if o.MaxRetries != nil {
		c.MaxRetries = *o.MaxRetries
	}
	if o.LaunchRate > 0 {
		c.LaunchRate = o.LaunchRate
	}
	if o.Notify != nil {
		c.Notify = *o.Notify
	}
	if o.DeleteEmptyDirs != nil {
		c.DeleteEmptyDirs = *o.DeleteEmptyDirs
	}
	if o.SkipCompleted != nil {
		c.SkipCompleted = *o.SkipCompleted
	}
	if o.StateFile != "" {
		c.StateFile = o.StateFile
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if o.ProxyMode != "" {
		c.ProxyMode = o.ProxyMode
	}
	if o.ProxyHost != "" {
		c.ProxyHost = o.ProxyHost
	}
	if o.ProxyPort > 0 {
		c.ProxyPort = o.ProxyPort
	}
	if o.UploadTarget != "" {
		c.UploadTarget = o.UploadTarget
	}
}

// parseProxyURL parses a proxy URL from environment variable
func (c *Config) parseProxyURL(proxyURL string) {
	// Simple parsing for http://host:port or https://host:port
	proxyURL = strings.TrimPrefix(proxyURL, "http://")
	proxyURL = strings.TrimPrefix(proxyURL, "https://")
	proxyURL = strings.TrimSuffix(proxyURL, "/")

	parts := strings.Split(proxyURL, ":")
	if len(parts) >= 1 {
		c.ProxyHost = parts[0]
	}
	if len(parts) >= 2 {
		if port, err := strconv.Atoi(parts[1]); err == nil {
			c.ProxyPort = port
		}
	}
	if c.ProxyHost != "" && (c.ProxyMode == "" || c.ProxyMode == ProxyModeNone) {
		c.ProxyMode = ProxyModeSystem
	}
}

// Timeout returns the per-track spotdl timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Workers < 1 || c.Workers > constants.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", constants.MaxWorkers, c.Workers)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.RetryAfterSuccesses < 1 {
		return fmt.Errorf("retry_after_successes must be at least 1")
	}
	if c.LaunchRate < 0 {
		return fmt.Errorf("launch_rate cannot be negative")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.SpotDLPath == "" {
		return fmt.Errorf("spotdl_path is required")
	}
	switch c.ProxyMode {
	case "", ProxyModeNone, ProxyModeSystem:
	case ProxyModeBasic, ProxyModeNTLM:
		if c.ProxyHost == "" || c.ProxyPort <= 0 {
			return fmt.Errorf("proxy mode %s requires proxy_host and proxy_port", c.ProxyMode)
		}
	default:
		return fmt.Errorf("unknown proxy_mode %q (want no-proxy, system, basic or ntlm)", c.ProxyMode)
	}
	if t := c.UploadTarget; t != "" && !strings.HasPrefix(t, "s3://") && !strings.HasPrefix(t, "azblob://") {
		return fmt.Errorf("upload_target must start with s3:// or azblob://, got %q", t)
	}
	return nil
}

// ConfigDir is the standard configuration directory name
const ConfigDir = "spdl"

// getConfigDir returns the platform-appropriate config directory.
// - Windows: %APPDATA%\SpDL
// - Unix: ~/.config/spdl (XDG standard)
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, constants.AppName)
		}
		// Fallback to USERPROFILE if APPDATA not set
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, "AppData", "Roaming", constants.AppName)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDir)
	}
	return ""
}

// GetDefaultConfigPath returns the default config file path
// - Windows: %APPDATA%\SpDL\config.csv
// - Unix: ~/.config/spdl/config.csv
func GetDefaultConfigPath() string {
	configDir := getConfigDir()
	if configDir == "" {
		return "config.csv"
	}
	return filepath.Join(configDir, "config.csv")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	configDir := getConfigDir()
	if configDir == "" {
		return fmt.Errorf("could not determine config directory")
	}
	return os.MkdirAll(configDir, 0700)
}
