package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "project:\n  name: demo\n  root: .\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.BasePath != DefaultBasePath {
		t.Errorf("base_path = %q, want %q", cfg.Server.BasePath, DefaultBasePath)
	}
	if cfg.CDN.BaseURL != DefaultCDNBaseURL {
		t.Errorf("cdn base = %q, want %q", cfg.CDN.BaseURL, DefaultCDNBaseURL)
	}
	if cfg.HMR.WatchDebounce() != DefaultWatchDebounce {
		t.Errorf("watch debounce = %v, want %v", cfg.HMR.WatchDebounce(), DefaultWatchDebounce)
	}
	if cfg.HMR.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("max attempts = %d, want %d", cfg.HMR.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
}

func TestLoad_ResolvesRelativeRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, "project:\n  name: demo\n  root: app\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Project.Root != filepath.Join(dir, "app") {
		t.Errorf("root = %q, want %q", cfg.Project.Root, filepath.Join(dir, "app"))
	}
}

func TestLoad_RejectsMissingName(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "project:\n  root: .\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing project.name")
	}
}

func TestLoad_RejectsMissingRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "project:\n  name: demo\n  root: does-not-exist\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing root directory")
	}
}

func TestJoinBase(t *testing.T) {
	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{"trailing slash on base", "http://localhost:7800/preview/", "/src/app.ts", "http://localhost:7800/preview/src/app.ts"},
		{"no trailing slash", "http://localhost:7800/preview", "/src/app.ts", "http://localhost:7800/preview/src/app.ts"},
		{"path without leading slash", "http://localhost:7800/preview", "src/app.ts", "http://localhost:7800/preview/src/app.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinBase(tt.base, tt.path); got != tt.want {
				t.Errorf("JoinBase(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
			}
		})
	}
}
