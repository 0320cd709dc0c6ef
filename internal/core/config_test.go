package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigManager_DefaultConfig(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDir(dir)

	cfg, err := cm.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.Build.SmokeTestGrace != DefaultSmokeTestGrace {
		t.Errorf("SmokeTestGrace = %v, want %v", cfg.Build.SmokeTestGrace, DefaultSmokeTestGrace)
	}
	if cfg.Build.Platform != DefaultPlatform {
		t.Errorf("Platform = %q, want %q", cfg.Build.Platform, DefaultPlatform)
	}
	if cfg.Resolver.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.Resolver.CacheTTL, DefaultCacheTTL)
	}
	if cfg.API.Staging {
		t.Error("expected staging to be off by default")
	}
}

func TestConfigManager_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDir(dir)

	cfg := defaultSettings()
	cfg.API.Staging = true
	cfg.Build.SmokeTestGrace = 25 * time.Second
	cfg.Log.Level = "debug"

	if err := cm.Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if _, err := os.Stat(cm.ConfigPath()); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	loaded, err := cm.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !loaded.API.Staging {
		t.Error("expected staging to be true")
	}
	if loaded.Build.SmokeTestGrace != 25*time.Second {
		t.Errorf("SmokeTestGrace = %v, want 25s", loaded.Build.SmokeTestGrace)
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want \"debug\"", loaded.Log.Level)
	}
}

func TestConfigManager_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDir(dir)

	content := "build:\n  smokeTestGrace: 3s\n"
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := cm.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Build.SmokeTestGrace != 3*time.Second {
		t.Errorf("SmokeTestGrace = %v, want 3s", cfg.Build.SmokeTestGrace)
	}
	if cfg.Build.Platform != DefaultPlatform {
		t.Errorf("Platform = %q, want default %q", cfg.Build.Platform, DefaultPlatform)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want \"text\"", cfg.Log.Format)
	}
}

func TestConfigManager_EndpointOverrides(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDir(dir)

	content := "api:\n  staging: true\n  baseURL: http://127.0.0.1:8080/v1\n  deploymentManagerURL: http://127.0.0.1:8080\n"
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := cm.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.API.Staging {
		t.Error("API.Staging = false, want true")
	}
	if cfg.API.BaseURL != "http://127.0.0.1:8080/v1" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.DeploymentManagerURL != "http://127.0.0.1:8080" {
		t.Errorf("API.DeploymentManagerURL = %q", cfg.API.DeploymentManagerURL)
	}
}

func TestConfigManager_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDir(dir)

	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte("build: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := cm.Load(); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestNewConfigManager_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)

	cm, err := NewConfigManager()
	if err != nil {
		t.Fatalf("NewConfigManager() error: %v", err)
	}
	if cm.ConfigDir() != dir {
		t.Errorf("ConfigDir() = %q, want %q", cm.ConfigDir(), dir)
	}
	if cm.ProfilesPath() != filepath.Join(dir, profilesFileName) {
		t.Errorf("ProfilesPath() = %q", cm.ProfilesPath())
	}
}
