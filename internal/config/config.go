package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains the program configuration
type Config struct {
	ServerURL          string `yaml:"server_url"`
	Verbose            bool   `yaml:"verbose"`
	RecordSeconds      int    `yaml:"record_seconds"`
	RecordCommand      string `yaml:"record_command"`
	RecordSampleRate   int    `yaml:"record_sample_rate"`
	PicturesDir        string `yaml:"pictures_dir"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
	WebPort            int    `yaml:"web_port"`
	StubPort           int    `yaml:"stub_port"`
	StubEnrich         bool   `yaml:"stub_enrich"`
	StubCatalogue      string `yaml:"stub_catalogue"`

	// Spotify credentials for stub cover lookups. Usually set through the
	// environment rather than the file.
	SpotifyClientID     string `yaml:"spotify_client_id,omitempty"`
	SpotifyClientSecret string `yaml:"spotify_client_secret,omitempty"`
}

// Environment variables that override file values.
const (
	EnvServerURL     = "DEEPTUNE_SERVER_URL"
	EnvRecordSeconds = "DEEPTUNE_RECORD_SECONDS"
	EnvRecordCommand = "DEEPTUNE_RECORD_COMMAND"
	EnvPicturesDir   = "DEEPTUNE_PICTURES_DIR"

	EnvSpotifyClientID     = "SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "SPOTIFY_CLIENT_SECRET"
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:          "http://localhost:5001",
		RecordSeconds:      10,
		RecordCommand:      "arecord -q -t raw -f S16_LE -c 1 -r 44100",
		RecordSampleRate:   44100,
		PicturesDir:        filepath.Join(homeDir(), "Pictures"),
		HTTPTimeoutSeconds: 60,
		WebPort:            8080,
		StubPort:           5001,
	}
}

// LoadConfigFile loads configuration from a YAML file and applies environment
// overrides (a .env file in the working directory is read first when present).
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	cfg.PicturesDir = ExpandHome(cfg.PicturesDir)
	cfg.StubCatalogue = ExpandHome(cfg.StubCatalogue)
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvRecordSeconds); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvRecordSeconds, v, err)
		}
		c.RecordSeconds = n
	}
	if v := os.Getenv(EnvRecordCommand); v != "" {
		c.RecordCommand = v
	}
	if v := os.Getenv(EnvPicturesDir); v != "" {
		c.PicturesDir = v
	}
	if v := os.Getenv(EnvSpotifyClientID); v != "" {
		c.SpotifyClientID = v
	}
	if v := os.Getenv(EnvSpotifyClientSecret); v != "" {
		c.SpotifyClientSecret = v
	}
	return nil
}

// RecordDuration is the length of a microphone capture.
func (c Config) RecordDuration() time.Duration {
	return time.Duration(c.RecordSeconds) * time.Second
}

// HTTPTimeout is the transport timeout for prediction requests.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./deeptune.yaml",
		"./deeptune.yml",
		filepath.Join(home, ".config", "deeptune", "config.yaml"),
		filepath.Join(home, ".config", "deeptune", "config.yml"),
		filepath.Join(home, ".deeptune.yaml"),
		filepath.Join(home, ".deeptune.yml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "deeptune", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "deeptune", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url cannot be empty")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url must start with http:// or https://")
	}

	if c.RecordSeconds < 1 {
		return fmt.Errorf("record_seconds must be at least 1, got %d", c.RecordSeconds)
	}
	if c.RecordSeconds > 60 {
		return fmt.Errorf("record_seconds cannot exceed 60, got %d", c.RecordSeconds)
	}
	if strings.TrimSpace(c.RecordCommand) == "" {
		return fmt.Errorf("record_command cannot be empty")
	}
	if c.RecordSampleRate <= 0 {
		return fmt.Errorf("record_sample_rate must be positive, got %d", c.RecordSampleRate)
	}
	if rate, ok := CommandSampleRate(c.RecordCommand); ok && rate != c.RecordSampleRate {
		return fmt.Errorf("record_command records at %d Hz but record_sample_rate is %d", rate, c.RecordSampleRate)
	}

	if c.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("http_timeout_seconds cannot be negative, got %d", c.HTTPTimeoutSeconds)
	}

	for name, port := range map[string]int{"web_port": c.WebPort, "stub_port": c.StubPort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}

	if (c.SpotifyClientID == "") != (c.SpotifyClientSecret == "") {
		return fmt.Errorf("spotify_client_id and spotify_client_secret must be set together")
	}

	return nil
}

// CommandSampleRate finds the rate flag of arecord/sox (-r, --rate) or
// ffmpeg (-ar) in a record command line.
func CommandSampleRate(commandLine string) (int, bool) {
	fields := strings.Fields(commandLine)
	for i, f := range fields {
		var value string
		switch {
		case f == "-r" || f == "--rate" || f == "-ar":
			if i+1 < len(fields) {
				value = fields[i+1]
			}
		case strings.HasPrefix(f, "--rate="):
			value = strings.TrimPrefix(f, "--rate=")
		default:
			continue
		}
		if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
			return rate, true
		}
	}
	return 0, false
}
