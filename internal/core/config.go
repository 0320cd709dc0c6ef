package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".xpander"
	configFileName = "config.yaml"

	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = "XPANDER_CONFIG_DIR"
)

const (
	DefaultPlatform       = "linux/amd64"
	DefaultSmokeTestGrace = 10 * time.Second
	DefaultCacheTTL       = 30 * time.Second
)

// ConfigManager handles reading and writing the CLI settings.
type ConfigManager struct {
	configDir string
	mu        sync.RWMutex
}

// NewConfigManager creates a ConfigManager using $XPANDER_CONFIG_DIR or ~/.xpander/.
func NewConfigManager() (*ConfigManager, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return &ConfigManager{configDir: dir}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return &ConfigManager{
		configDir: filepath.Join(home, configDirName),
	}, nil
}

// NewConfigManagerWithDir creates a ConfigManager using a custom config directory.
// Useful for testing.
func NewConfigManagerWithDir(dir string) *ConfigManager {
	return &ConfigManager{configDir: dir}
}

// ConfigDir returns the configuration directory path.
func (cm *ConfigManager) ConfigDir() string {
	return cm.configDir
}

// ConfigPath returns the full path to the settings file.
func (cm *ConfigManager) ConfigPath() string {
	return filepath.Join(cm.configDir, configFileName)
}

// Load reads the settings from disk. Returns defaults if the file doesn't exist.
// Zero values in the file fall back to defaults.
func (cm *ConfigManager) Load() (*Settings, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	data, err := os.ReadFile(cm.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := defaultSettings()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes the settings to disk, creating the directory if needed.
func (cm *ConfigManager) Save(cfg *Settings) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := os.MkdirAll(cm.configDir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Write atomically: write to temp file then rename
	tmpPath := cm.ConfigPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmpPath, cm.ConfigPath()); err != nil {
		_ = os.Remove(tmpPath) // clean up on failure
		return fmt.Errorf("saving config: %w", err)
	}

	return nil
}

// ProfilesPath returns the path of the credential profiles file.
func (cm *ConfigManager) ProfilesPath() string {
	return filepath.Join(cm.configDir, profilesFileName)
}

func defaultSettings() *Settings {
	return &Settings{
		Log: LogSettings{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
		Build: BuildSettings{
			Platform:       DefaultPlatform,
			SmokeTestGrace: DefaultSmokeTestGrace,
		},
		Resolver: ResolverSettings{
			CacheTTL: DefaultCacheTTL,
		},
	}
}

func applyDefaults(cfg *Settings) {
	def := defaultSettings()
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = def.Log.Output
	}
	if cfg.Build.Platform == "" {
		cfg.Build.Platform = def.Build.Platform
	}
	if cfg.Build.SmokeTestGrace <= 0 {
		cfg.Build.SmokeTestGrace = def.Build.SmokeTestGrace
	}
	if cfg.Resolver.CacheTTL <= 0 {
		cfg.Resolver.CacheTTL = def.Resolver.CacheTTL
	}
}
