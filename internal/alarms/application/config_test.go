package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ALARMBOARD_MANAGER_URL", "http://manager.example")
	t.Setenv("ALARMBOARD_COLLECTOR_HOST", "collector.internal")
	t.Setenv("ALARMBOARD_REFRESH_SECONDS", "30")
	t.Setenv("ALARMBOARD_CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("ALARMBOARD_COMMENTS_HOST", "")
	t.Setenv("ALARMBOARD_CONFIG", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CollectorHost != "collector.internal" {
		t.Fatalf("collector host: %q", cfg.CollectorHost)
	}
	if cfg.CommentsHost != "collector.internal" {
		t.Fatalf("comments host should default to collector host: %q", cfg.CommentsHost)
	}
	if cfg.RefreshEvery() != 30*time.Second {
		t.Fatalf("refresh interval: %v", cfg.RefreshEvery())
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.example" {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigRequiresManagerURL(t *testing.T) {
	t.Setenv("ALARMBOARD_MANAGER_URL", "")
	t.Setenv("ALARMBOARD_CONFIG", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without manager URL")
	}
}

func TestLoadConfigRefreshFloor(t *testing.T) {
	t.Setenv("ALARMBOARD_MANAGER_URL", "http://manager.example")
	t.Setenv("ALARMBOARD_REFRESH_SECONDS", "1")
	t.Setenv("ALARMBOARD_CONFIG", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RefreshInterval != 60 {
		t.Fatalf("expected floor reset to 60, got %d", cfg.RefreshInterval)
	}
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := []byte("http_addr: \":9090\"\nmanager_url: http://yaml-manager.example\n")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ALARMBOARD_MANAGER_URL", "http://env-manager.example")
	t.Setenv("ALARMBOARD_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("http addr: %q", cfg.HTTPAddr)
	}
	if cfg.ManagerURL != "http://yaml-manager.example" {
		t.Fatalf("yaml should override env: %q", cfg.ManagerURL)
	}
}
