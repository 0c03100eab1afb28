package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Player    PlayerConfig    `mapstructure:"player"`
	UI        UIConfig        `mapstructure:"ui"`
	History   HistoryConfig   `mapstructure:"history"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Advanced  AdvancedConfig  `mapstructure:"advanced"`
}

// APIConfig configures the AniStream backend connection
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// AuthConfig configures the OAuth login flow
type AuthConfig struct {
	// CallbackPort must match the redirect URI registered with the backend
	CallbackPort int `mapstructure:"callback_port"`
}

// PlayerConfig configures the external mpv player
type PlayerConfig struct {
	MPVPath        string   `mapstructure:"mpv_path"`
	ExtraArgs      []string `mapstructure:"extra_args"`
	Volume         float64  `mapstructure:"volume"`
	Fullscreen     bool     `mapstructure:"fullscreen"`
	LoadUserConfig bool     `mapstructure:"load_user_config"`
}

// UIConfig configures view behavior
type UIConfig struct {
	CarouselInterval    time.Duration `mapstructure:"carousel_interval"`
	ControlsHideTimeout time.Duration `mapstructure:"controls_hide_timeout"`
	PageSize            int           `mapstructure:"page_size"`
}

// HistoryConfig configures watch-history behavior
type HistoryConfig struct {
	SyncEnabled bool `mapstructure:"sync_enabled"`
	KeepDays    int  `mapstructure:"keep_days"`
}

// DatabaseConfig configures the local sqlite store
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Color      bool   `mapstructure:"color"`
}

// DownloadsConfig configures episode downloads
type DownloadsConfig struct {
	Dir            string `mapstructure:"dir"`
	Concurrency    int    `mapstructure:"concurrency"`
	MinFreeSpaceGB int    `mapstructure:"min_free_space_gb"`
}

// AdvancedConfig holds settings most users never touch
type AdvancedConfig struct {
	Debug     bool            `mapstructure:"debug"`
	Clipboard ClipboardConfig `mapstructure:"clipboard"`
}

// ClipboardConfig overrides how text reaches the system clipboard
type ClipboardConfig struct {
	Command string `mapstructure:"command"`
}

// InitializeDirs creates the config, data and state directories
func InitializeDirs() error {
	dirs := []string{
		GetConfigDir(),
		getDataDir(),
		filepath.Join(getStateDir(), "anistream"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Load reads the configuration from the given file, or from the default
// location when cfgFile is empty. The returned viper instance can be used
// for hot reload.
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
	}

	v.SetEnvPrefix("ANISTREAM")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, v, nil
}

// setDefaults registers the default value for every setting
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.user_agent", "anistream/1.0")

	v.SetDefault("auth.callback_port", 53219)

	v.SetDefault("player.mpv_path", "mpv")
	v.SetDefault("player.extra_args", []string{})
	v.SetDefault("player.volume", 1.0)
	v.SetDefault("player.fullscreen", false)
	v.SetDefault("player.load_user_config", false)

	v.SetDefault("ui.carousel_interval", "6s")
	v.SetDefault("ui.controls_hide_timeout", "3s")
	v.SetDefault("ui.page_size", 20)

	v.SetDefault("history.sync_enabled", true)
	v.SetDefault("history.keep_days", 30)

	v.SetDefault("database.path", filepath.Join(getDataDir(), "anistream.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)
	v.SetDefault("database.auto_vacuum", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.color", true)

	v.SetDefault("downloads.dir", defaultDownloadsDir())
	v.SetDefault("downloads.concurrency", 2)
	v.SetDefault("downloads.min_free_space_gb", 1)

	v.SetDefault("advanced.debug", false)
	v.SetDefault("advanced.clipboard.command", "")
}

// GetConfigDir returns the platform config directory for anistream
func GetConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "anistream")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "anistream")
}

// getDataDir returns the platform data directory for anistream
func getDataDir() string {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "anistream")
		}
	}

	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "anistream")
	}

	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "anistream")
	}
	return filepath.Join(home, ".local", "share", "anistream")
}

// getStateDir returns the platform state directory (logs live here)
func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}

	home, _ := os.UserHomeDir()
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return getDataDir()
	}
	return filepath.Join(home, ".local", "state")
}

// defaultDownloadsDir returns the default location for episode downloads
func defaultDownloadsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Downloads", "anistream")
}

// SaveDefaultConfig writes a commented default config file to the given path
func SaveDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := `# anistream configuration

api:
  # AniStream backend to talk to
  base_url: http://localhost:8000
  timeout: 30s
  user_agent: anistream/1.0

auth:
  # Local port for the OAuth callback. Must match the redirect URI the
  # backend registered with Discord.
  callback_port: 53219

player:
  mpv_path: mpv
  extra_args: []
  # Initial volume, 0.0 to 1.0
  volume: 1.0
  fullscreen: false

ui:
  carousel_interval: 6s
  controls_hide_timeout: 3s
  page_size: 20

history:
  sync_enabled: true
  keep_days: 30

# database:
#   path: override the sqlite location

logging:
  level: info
  format: text
  max_size: 10
  max_backups: 3
  max_age: 28
  compress: true
  color: true

downloads:
  # dir: ~/Downloads/anistream
  concurrency: 2

advanced:
  debug: false
`

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
