package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	settingsFileName = "config.yaml"

	// DefaultTimeout bounds every call to the document store and issue source
	DefaultTimeout = 10 * time.Second
)

// Settings holds the persistent defaults of the issuedesk command
type Settings struct {
	// User is the identifier (e-mail) of the current user
	User string `yaml:"user"`
	// IDTokenFile is a JWT whose email claim identifies the current user
	IDTokenFile string `yaml:"idTokenFile"`
	// Store is the document store backend: memory, yaml or sqlite
	Store string `yaml:"store"`
	// DataDir overrides where the document store keeps its files
	DataDir string `yaml:"dataDir"`
	// Issues selects where issues come from: store or jira
	Issues string `yaml:"issues"`
	// Timeout bounds each collaborator call
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the logrus level name
	LogLevel string `yaml:"logLevel"`
}

// NewSettings creates settings with the built-in defaults
func NewSettings() *Settings {
	return &Settings{
		Store:    "yaml",
		Issues:   "store",
		Timeout:  DefaultTimeout,
		LogLevel: "info",
	}
}

// SettingsPath returns the default location of the settings file
func SettingsPath() string {
	return filepath.Join(MustConfigDir(), settingsFileName)
}

// LoadSettings loads settings from path, returns defaults if the file doesn't exist
func LoadSettings(path string) (*Settings, error) {
	settings := NewSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	// Restore defaults the file blanked out
	defaults := NewSettings()
	if settings.Store == "" {
		settings.Store = defaults.Store
	}
	if settings.Issues == "" {
		settings.Issues = defaults.Issues
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaults.Timeout
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}

	return settings, nil
}

// Save writes the settings to path
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// ResolveDataDir returns the configured data directory or the default one
func (s *Settings) ResolveDataDir() (string, error) {
	if s.DataDir != "" {
		return s.DataDir, nil
	}
	return DataDir()
}
