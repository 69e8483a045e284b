package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "base_url: http://blog.example.com/\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseURL != "http://blog.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.DocsPath != "docs" || cfg.BackupPath != filepath.Join("docs", ".backups") {
		t.Errorf("unexpected paths %q %q", cfg.DocsPath, cfg.BackupPath)
	}
	if cfg.ConflictMode != "show" || cfg.StaticDir != ".static" {
		t.Errorf("unexpected mode %q or static dir %q", cfg.ConflictMode, cfg.StaticDir)
	}
	if cfg.Sync.PullPageSize != 100000 || cfg.Sync.ExcerptLength != 150 || cfg.Sync.DebounceMs != 2000 {
		t.Errorf("unexpected sync config %+v", cfg.Sync)
	}
	if cfg.HTTP.Timeout() != 0 {
		t.Errorf("Timeout() = %v, want 0", cfg.HTTP.Timeout())
	}
	if len(cfg.IgnorePatterns) != len(DefaultConfig().IgnorePatterns) {
		t.Errorf("unexpected ignore patterns %v", cfg.IgnorePatterns)
	}
	if cfg.File() != path {
		t.Errorf("File() = %q, want %q", cfg.File(), path)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"base_url: https://blog.example.com",
		"docs_path: /data/docs",
		"conflict_mode: delete",
		"static_dir: assets",
		"ignore_patterns: [drafts]",
		"sync:",
		"  debounce_ms: 500",
		"http:",
		"  timeout_ms: 1500",
		"",
	}, "\n"))
	t.Setenv("DOCSYNC_API_KEY", "from-env")
	t.Setenv("DOCSYNC_SYNC_PULL_PAGE_SIZE", "50")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.APIKey)
	}
	if cfg.Sync.PullPageSize != 50 || cfg.Sync.DebounceMs != 500 {
		t.Errorf("unexpected sync config %+v", cfg.Sync)
	}
	if cfg.HTTP.Timeout() != 1500*time.Millisecond {
		t.Errorf("Timeout() = %v", cfg.HTTP.Timeout())
	}
	if cfg.DocsPath != "/data/docs" || cfg.ConflictMode != "delete" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if want := []string{"drafts", "assets"}; strings.Join(cfg.IgnorePatterns, ",") != strings.Join(want, ",") {
		t.Errorf("IgnorePatterns = %v, want %v", cfg.IgnorePatterns, want)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad url", "base_url: not a url\n"},
		{"bad conflict mode", "base_url: http://x.com\nconflict_mode: merge\n"},
		{"nested static dir", "base_url: http://x.com\nstatic_dir: a/b\n"},
		{"page size", "base_url: http://x.com\nsync:\n  pull_page_size: 0\n"},
		{"malformed yaml", "base_url: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestRequire(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.RequireRemote(); !errors.Is(err, ErrMissingBaseURL) {
		t.Errorf("RequireRemote() = %v, want ErrMissingBaseURL", err)
	}

	cfg.BaseURL = "http://x.com"
	if err := cfg.RequireRemote(); err != nil {
		t.Errorf("RequireRemote() = %v", err)
	}
	if err := cfg.RequireAPIKey(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("RequireAPIKey() = %v, want ErrMissingAPIKey", err)
	}

	cfg.APIKey = "k"
	if err := cfg.RequireAPIKey(); err != nil {
		t.Errorf("RequireAPIKey() = %v", err)
	}
}

func TestSaveAPIKey(t *testing.T) {
	path := writeConfig(t, "# my blog\nbase_url: http://x.com\napi_key: old\ndocs_path: notes\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	saved, err := cfg.SaveAPIKey("new-key")
	if err != nil {
		t.Fatalf("SaveAPIKey failed: %v", err)
	}
	if saved != path {
		t.Errorf("saved to %q, want %q", saved, path)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.APIKey != "new-key" || reloaded.DocsPath != "notes" {
		t.Errorf("unexpected reloaded config %+v", reloaded)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "# my blog") {
		t.Errorf("comments should be kept, got:\n%s", data)
	}
}

func TestSaveAPIKey_NoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())

	cfg := DefaultConfig()
	saved, err := cfg.SaveAPIKey("k1")
	if err != nil {
		t.Fatalf("SaveAPIKey failed: %v", err)
	}
	if saved != DefaultConfigPath() {
		t.Errorf("saved to %q, want %q", saved, DefaultConfigPath())
	}

	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "api_key: k1\n" {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "docsync", "config.yaml")

	if err := WriteDefault(path, "http://127.0.0.1:8000"); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	if err := WriteDefault(path, "http://other"); err == nil {
		t.Error("expected error when the file exists")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("starter config should load: %v", err)
	}
	if cfg.BaseURL != "http://127.0.0.1:8000" || cfg.APIKey != "" {
		t.Errorf("unexpected starter config %+v", cfg)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"", ""},
		{"short", "*****"},
		{"abcdefghijkl", "abcd****ijkl"},
	}

	for _, tt := range tests {
		if got := MaskKey(tt.key); got != tt.expected {
			t.Errorf("MaskKey(%q) = %q, want %q", tt.key, got, tt.expected)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	t.Setenv("DOCSYNC_TEST_DIR", "/srv")

	tests := []struct {
		input    string
		expected string
	}{
		{"docs", "docs"},
		{"~/docs", filepath.Join(home, "docs")},
		{"$DOCSYNC_TEST_DIR/docs", "/srv/docs"},
	}

	for _, tt := range tests {
		if got := expandPath(tt.input); got != tt.expected {
			t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
