// Package config provides configuration management for ipogen.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the content of config.yaml.
type Settings struct {
	// DefaultStrength is used when a model does not set one.
	DefaultStrength int `yaml:"default_strength"`

	// DefaultEngine is used when a model does not set one: "ipo2" or "simple".
	DefaultEngine string `yaml:"default_engine"`

	// Output is the default output format: "table", "json", "yaml" or "csv".
	Output string `yaml:"output"`

	// Timeout bounds a single generation. Zero means no limit.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Cache configures the covering-array cache.
	Cache CacheSettings `yaml:"cache"`

	// Optimizer configures the default IPO2 optimizer.
	Optimizer OptimizerSettings `yaml:"optimizer"`
}

// CacheSettings configures the covering-array cache.
type CacheSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// OptimizerSettings configures the greedy optimizer.
type OptimizerSettings struct {
	// SearchBudget is the number of complete assignments examined per gap fill.
	SearchBudget int `yaml:"search_budget"`
}

// Duration is a wrapper around time.Duration for YAML serialization.
type Duration struct {
	time.Duration
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Manager handles configuration persistence and retrieval.
type Manager struct {
	configDir string
}

// ManagerOption is a function that configures a Manager.
type ManagerOption func(*Manager)

// WithConfigDir sets a custom configuration directory.
func WithConfigDir(dir string) ManagerOption {
	return func(m *Manager) {
		m.configDir = dir
	}
}

// NewManager creates a new configuration manager.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	m := &Manager{
		configDir: configDir,
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.MkdirAll(m.ModelsDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	return m, nil
}

// GetConfigDir returns the platform-specific configuration directory.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("IPOGEN_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		// macOS: ~/Library/Application Support/ipogen
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support", "ipogen")

	case "windows":
		// Windows: %APPDATA%\ipogen
		appData := os.Getenv("APPDATA")
		if appData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		baseDir = filepath.Join(appData, "ipogen")

	default:
		// Linux/Unix: ~/.config/ipogen (XDG Base Directory Specification)
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			xdgConfig = filepath.Join(homeDir, ".config")
		}
		baseDir = filepath.Join(xdgConfig, "ipogen")
	}

	return baseDir, nil
}

// ConfigDir returns the configuration directory path.
func (m *Manager) ConfigDir() string {
	return m.configDir
}

// ModelsDir returns the directory holding saved models.
func (m *Manager) ModelsDir() string {
	return filepath.Join(m.configDir, "models")
}

// SettingsPath returns the path of config.yaml.
func (m *Manager) SettingsPath() string {
	return filepath.Join(m.configDir, "config.yaml")
}

// DefaultSettings returns the settings used when config.yaml is absent.
func (m *Manager) DefaultSettings() *Settings {
	return &Settings{
		DefaultStrength: 2,
		DefaultEngine:   "ipo2",
		Output:          "table",
		Cache: CacheSettings{
			Enabled: true,
			Path:    filepath.Join(m.configDir, "cache.db"),
		},
		Optimizer: OptimizerSettings{SearchBudget: 4096},
	}
}

// LoadSettings reads config.yaml, filling unset fields with defaults.
func (m *Manager) LoadSettings() (*Settings, error) {
	settings := m.DefaultSettings()

	data, err := os.ReadFile(m.SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read config file '%s': %w", m.SettingsPath(), err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", m.SettingsPath(), err)
	}

	defaults := m.DefaultSettings()
	if settings.DefaultStrength == 0 {
		settings.DefaultStrength = defaults.DefaultStrength
	}
	if settings.DefaultEngine == "" {
		settings.DefaultEngine = defaults.DefaultEngine
	}
	if settings.Output == "" {
		settings.Output = defaults.Output
	}
	if settings.Cache.Path == "" {
		settings.Cache.Path = defaults.Cache.Path
	}
	if settings.Optimizer.SearchBudget == 0 {
		settings.Optimizer.SearchBudget = defaults.Optimizer.SearchBudget
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid config file '%s': %w", m.SettingsPath(), err)
	}
	return settings, nil
}

// SaveSettings writes config.yaml.
func (m *Manager) SaveSettings(settings *Settings) error {
	if settings == nil {
		return fmt.Errorf("settings cannot be nil")
	}
	if err := ValidateSettings(settings); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	return writeAtomic(m.SettingsPath(), data)
}

// ValidateSettings checks the ranges of every setting.
func ValidateSettings(s *Settings) error {
	if s == nil {
		return fmt.Errorf("settings are nil")
	}
	if s.DefaultStrength < 2 {
		return fmt.Errorf("default_strength must be at least 2, got %d", s.DefaultStrength)
	}
	switch s.DefaultEngine {
	case "ipo2", "simple":
	default:
		return fmt.Errorf("default_engine must be 'ipo2' or 'simple', got '%s'", s.DefaultEngine)
	}
	switch s.Output {
	case "table", "json", "yaml", "csv":
	default:
		return fmt.Errorf("output must be one of table, json, yaml, csv; got '%s'", s.Output)
	}
	if s.Timeout.Duration < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if s.Optimizer.SearchBudget < 1 {
		return fmt.Errorf("optimizer.search_budget must be positive, got %d", s.Optimizer.SearchBudget)
	}
	return nil
}

// SaveModel stores model data under name in the models directory.
func (m *Manager) SaveModel(name string, data []byte) error {
	if err := validateModelName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(m.ModelsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	return writeAtomic(m.modelPath(name), data)
}

// ModelPath returns the path of a saved model.
func (m *Manager) ModelPath(name string) (string, error) {
	if err := validateModelName(name); err != nil {
		return "", err
	}
	path := m.modelPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", &SavedModelNotFoundError{Name: name}
		}
		return "", fmt.Errorf("failed to stat model '%s': %w", name, err)
	}
	return path, nil
}

// DeleteModel removes a saved model.
func (m *Manager) DeleteModel(name string) error {
	if err := validateModelName(name); err != nil {
		return err
	}
	if err := os.Remove(m.modelPath(name)); err != nil {
		if os.IsNotExist(err) {
			return &SavedModelNotFoundError{Name: name}
		}
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}

// ListModels returns the names of saved models.
func (m *Manager) ListModels() ([]string, error) {
	entries, err := os.ReadDir(m.ModelsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".yaml" {
			names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
		}
	}

	sort.Strings(names)
	return names, nil
}

// ResolveModel turns a command-line argument into a model file path. A
// readable file wins; otherwise the argument is looked up among saved models.
func (m *Manager) ResolveModel(arg string) (string, error) {
	path, err := ValidateAndResolvePath(arg)
	if err == nil {
		return path, nil
	}
	if validateModelName(arg) != nil {
		return "", err
	}
	return m.ModelPath(arg)
}

func (m *Manager) modelPath(name string) string {
	return filepath.Join(m.ModelsDir(), name+".yaml")
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save '%s': %w", path, err)
	}
	return nil
}

var modelNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// validateModelName validates the name of a saved model.
func validateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("model name cannot be empty")
	}

	if !modelNamePattern.MatchString(name) {
		return fmt.Errorf("model name must start with a letter and contain only letters, numbers, hyphens, and underscores")
	}

	if len(name) > 64 {
		return fmt.Errorf("model name cannot exceed 64 characters")
	}

	return nil
}

// SavedModelNotFoundError indicates a saved model was not found.
type SavedModelNotFoundError struct {
	Name string
}

func (e *SavedModelNotFoundError) Error() string {
	return fmt.Sprintf("model '%s' is not saved", e.Name)
}
