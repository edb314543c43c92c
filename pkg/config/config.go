/*
Package config manages TOML config for the predictd engine and server.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kaedera/predictd/internal/utils"
)

// Config holds the entire config structure
type Config struct {
	Predict PredictConfig `toml:"predict"`
	Boost   BoostConfig   `toml:"boost"`
	Dict    DictConfig    `toml:"dict"`
	Model   ModelConfig   `toml:"model"`
	Server  ServerConfig  `toml:"server"`
	CLI     CliConfig     `toml:"cli"`
}

// PredictConfig tunes the query pipeline.
type PredictConfig struct {
	MaxSuggestions int `toml:"max_suggestions"`
	CacheCapacity  int `toml:"cache_capacity"`
	TimeoutMs      int `toml:"timeout_ms"`
	ContextWindow  int `toml:"context_window"`
}

// Timeout returns the per-query inference budget.
func (p PredictConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// BoostConfig holds the personalization weights applied to raw model scores.
type BoostConfig struct {
	Frequency         float64 `toml:"frequency"`
	Recency           float64 `toml:"recency"`
	RecencyWindowDays int     `toml:"recency_window_days"`
	PrefixBonus       float64 `toml:"prefix_bonus"`
	DictionaryOnly    float64 `toml:"dictionary_only"`
}

// DictConfig locates the shared personalization snapshot.
type DictConfig struct {
	Path string `toml:"path"`
}

// ModelConfig locates the per-language model files.
type ModelConfig struct {
	Dir string `toml:"dir"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxLimit     int  `toml:"max_limit"`
	MinPrefix    int  `toml:"min_prefix"`
	MaxPrefix    int  `toml:"max_prefix"`
	EnableFilter bool `toml:"enable_filter"`
	MaxInflight  int  `toml:"max_inflight"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit    int  `toml:"default_limit"`
	DefaultNoFilter bool `toml:"default_no_filter"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "predictd")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	// Not conventional, fallback from ~/.config if not writable
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "predictd")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// DefaultDictionaryPath returns where the shared personalization snapshot
// lives when [dict].path is not set.
func DefaultDictionaryPath() string {
	configDir, err := GetConfigDir()
	if err != nil {
		return "userdict.bin"
	}
	return filepath.Join(configDir, "userdict.bin")
}

// DefaultModelDir returns where model files live when [model].dir is not set.
func DefaultModelDir() string {
	configDir, err := GetConfigDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(configDir, "models")
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/predictd/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	var config *Config
	var err error

	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err = LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err = InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Predict: PredictConfig{
			MaxSuggestions: 30,
			CacheCapacity:  100,
			TimeoutMs:      50,
			ContextWindow:  64,
		},
		Boost: BoostConfig{
			Frequency:         0.3,
			Recency:           0.2,
			RecencyWindowDays: 30,
			PrefixBonus:       0.1,
			DictionaryOnly:    0.5,
		},
		Dict:  DictConfig{Path: ""},
		Model: ModelConfig{Dir: ""},
		Server: ServerConfig{
			MaxLimit:     64,
			MinPrefix:    1,
			MaxPrefix:    60,
			EnableFilter: true,
			MaxInflight:  8,
		},
		CLI: CliConfig{
			DefaultLimit:    10,
			DefaultNoFilter: false,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. Keys absent from the file keep their
// default values; a file that does not parse at all falls back to defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		log.Warnf("Could not parse configuration from %s: %v. Using all defaults.", configPath, err)
		return DefaultConfig(), nil
	}
	config.normalize()
	return config, nil
}

// normalize clamps values a hand-edited file could break.
func (c *Config) normalize() {
	if c.Predict.MaxSuggestions < 1 {
		c.Predict.MaxSuggestions = 1
	}
	if c.Predict.CacheCapacity < 1 {
		c.Predict.CacheCapacity = 1
	}
	if c.Predict.TimeoutMs < 1 {
		c.Predict.TimeoutMs = 1
	}
	if c.Predict.ContextWindow < 1 {
		c.Predict.ContextWindow = 1
	}
	if c.Boost.RecencyWindowDays < 1 {
		c.Boost.RecencyWindowDays = 1
	}
	if c.Server.MaxLimit < 1 {
		c.Server.MaxLimit = 1
	}
	if c.Server.MinPrefix < 1 {
		c.Server.MinPrefix = 1
	}
	if c.Server.MaxPrefix < c.Server.MinPrefix {
		c.Server.MaxPrefix = c.Server.MinPrefix
	}
	if c.Server.MaxInflight < 1 {
		c.Server.MaxInflight = 1
	}
	if c.CLI.DefaultLimit < 1 {
		c.CLI.DefaultLimit = 1
	}
}

// DictionaryPath resolves the snapshot location, falling back to the
// per-user default when the config leaves it empty.
func (c *Config) DictionaryPath() string {
	if c.Dict.Path != "" {
		return c.Dict.Path
	}
	return DefaultDictionaryPath()
}

// ModelDir resolves the model directory, falling back to the per-user
// default when the config leaves it empty.
func (c *Config) ModelDir() string {
	if c.Model.Dir != "" {
		return c.Model.Dir
	}
	return DefaultModelDir()
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(defaultPath)
	if err := utils.EnsureDir(configDir); err != nil {
		return err
	}
	config := DefaultConfig()
	return utils.SaveTOMLFile(config, defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
