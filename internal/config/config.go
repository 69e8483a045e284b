package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "docsync"

var (
	ErrMissingBaseURL = errors.New("base_url is not configured")
	ErrMissingAPIKey  = errors.New("api_key is not configured, run `docsync getkey` first")
)

// Config holds all application configuration
type Config struct {
	BaseURL        string     `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string     `mapstructure:"api_key"`
	DocsPath       string     `mapstructure:"docs_path" validate:"required"`
	BackupPath     string     `mapstructure:"backup_path" validate:"required"`
	ConflictMode   string     `mapstructure:"conflict_mode" validate:"oneof=show pull delete"`
	StaticDir      string     `mapstructure:"static_dir" validate:"required,excludesall=/\\"`
	IgnorePatterns []string   `mapstructure:"ignore_patterns"`
	Sync           SyncConfig `mapstructure:"sync"`
	HTTP           HTTPConfig `mapstructure:"http"`

	file string
}

// SyncConfig holds sync behavior settings
type SyncConfig struct {
	PullPageSize  int `mapstructure:"pull_page_size" validate:"min=1"`
	ExcerptLength int `mapstructure:"excerpt_length" validate:"min=1"`
	DebounceMs    int `mapstructure:"debounce_ms" validate:"min=0"`
}

// HTTPConfig holds remote client settings
type HTTPConfig struct {
	TimeoutMs int `mapstructure:"timeout_ms" validate:"min=0"`
}

// Timeout returns the request timeout, zero meaning none
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutMs) * time.Millisecond
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DocsPath:     "docs",
		BackupPath:   filepath.Join("docs", ".backups"),
		ConflictMode: "show",
		StaticDir:    ".static",
		Sync: SyncConfig{
			PullPageSize:  100000,
			ExcerptLength: 150,
			DebounceMs:    2000,
		},
		IgnorePatterns: []string{
			"文章模板.md",
			"页面模板.md",
			"草稿",
			".backups",
			".static",
			".git/**",
		},
	}
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("docs_path", defaults.DocsPath)
	v.SetDefault("backup_path", defaults.BackupPath)
	v.SetDefault("conflict_mode", defaults.ConflictMode)
	v.SetDefault("static_dir", defaults.StaticDir)
	v.SetDefault("ignore_patterns", defaults.IgnorePatterns)
	v.SetDefault("sync.pull_page_size", defaults.Sync.PullPageSize)
	v.SetDefault("sync.excerpt_length", defaults.Sync.ExcerptLength)
	v.SetDefault("sync.debounce_ms", defaults.Sync.DebounceMs)
	v.SetDefault("http.timeout_ms", defaults.HTTP.TimeoutMs)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("DOCSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.file = v.ConfigFileUsed()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.APIKey = os.ExpandEnv(cfg.APIKey)
	cfg.DocsPath = expandPath(cfg.DocsPath)
	cfg.BackupPath = expandPath(cfg.BackupPath)

	// downloaded attachments are never documents
	if !slices.Contains(cfg.IgnorePatterns, cfg.StaticDir) {
		cfg.IgnorePatterns = append(cfg.IgnorePatterns, cfg.StaticDir)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// File returns the config file that was loaded, or "" when none was found
func (c *Config) File() string {
	return c.file
}

// RequireRemote checks the settings every remote command needs
func (c *Config) RequireRemote() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	return nil
}

// RequireAPIKey checks the settings of commands calling authenticated
// endpoints
func (c *Config) RequireAPIKey() error {
	if err := c.RequireRemote(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// SaveAPIKey stores key in the loaded config file, or in the user config
// file when none was loaded. Other settings in the file are kept as written.
func (c *Config) SaveAPIKey(key string) (string, error) {
	path := c.file
	if path == "" {
		path = DefaultConfigPath()
	}

	var doc yaml.Node
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return "", fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	setKey(&doc, "api_key", key)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	c.APIKey = key
	c.file = path
	return path, nil
}

// setKey sets a top-level scalar in a YAML document, creating the mapping
// when the document is empty
func setKey(doc *yaml.Node, key, value string) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		*doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		*m = yaml.Node{Kind: yaml.MappingNode}
	}

	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}

const starterConfig = `# docsync configuration
base_url: %q
api_key: ""

docs_path: docs
backup_path: docs/.backups

# show | pull | delete
conflict_mode: show

static_dir: .static
ignore_patterns:
  - 文章模板.md
  - 页面模板.md
  - 草稿
  - .backups
  - .static
  - .git/**

sync:
  pull_page_size: 100000
  excerpt_length: 150
  debounce_ms: 2000

http:
  timeout_ms: 0
`

// WriteDefault writes a starter config file to path. An existing file is
// never overwritten.
func WriteDefault(path, baseURL string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf(starterConfig, baseURL)), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the config file location in the user config dir
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// MaskKey hides all but the ends of an API key
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// getConfigDir returns the appropriate config directory for the OS
func getConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(os.Getenv("USERPROFILE"), ".config", appName)
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, appName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// GetStateDir returns the directory for storing journal files
func GetStateDir() (string, error) {
	dir := getConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// expandPath expands ~ and environment variables in a path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path)
}
