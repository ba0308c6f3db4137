package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "UFCSERVER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	siteOriginEnv     = "SITE_ORIGIN"
	downloadDirEnv    = "DOWNLOAD_DIR"
	serverAddrEnv     = "SERVER_ADDR"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds high-level settings required across the application.
type Config struct {
	Site          SiteConfig         `yaml:"site"`
	HTTP          HTTPConfig         `yaml:"http"`
	Database      DatabaseConfig     `yaml:"database"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Embed         EmbedConfig        `yaml:"embed"`
	Download      DownloadConfig     `yaml:"download"`
	Server        ServerConfig       `yaml:"server"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// SiteConfig names the catalog being harvested.
type SiteConfig struct {
	Origin string `yaml:"origin"`
}

// HTTPConfig tunes the shared outbound client.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// PipelineConfig paces the harvesting run.
type PipelineConfig struct {
	MaxPages  int           `yaml:"maxPages"`
	ItemDelay time.Duration `yaml:"itemDelay"`
	PageDelay time.Duration `yaml:"pageDelay"`
	Download  bool          `yaml:"download"`
	SkipKnown bool          `yaml:"skipKnown"`
}

// EmbedConfig lists hosts whose embed links point at an HTML player page.
type EmbedConfig struct {
	IndirectHosts []string `yaml:"indirectHosts"`
}

// DownloadConfig places acquired media files.
type DownloadConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// SchedulerConfig repeats scrape runs. Zero runs once.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// LoggingConfig selects verbosity and output encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads .env, then the YAML file at path (or $UFCSERVER_CONFIG) over the
// defaults, then environment overrides. A missing path means defaults only.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(raw))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Site.Origin = strings.TrimSuffix(strings.TrimSpace(cfg.Site.Origin), "/")

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Site.Origin); err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Errorf("site.origin must be an absolute URL, got %q", c.Site.Origin))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive"))
	}
	if c.Pipeline.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.maxPages must be positive"))
	}
	if c.Pipeline.ItemDelay < 0 || c.Pipeline.PageDelay < 0 {
		errs = append(errs, fmt.Errorf("pipeline delays must not be negative"))
	}
	if c.Database.Table != "" && !tableNamePattern.MatchString(c.Database.Table) {
		errs = append(errs, fmt.Errorf("database.table %q is not a valid identifier", c.Database.Table))
	}
	if c.Download.Dir == "" {
		errs = append(errs, fmt.Errorf("download.dir is required"))
	}
	if c.Scheduler.Interval < 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval must not be negative"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(siteOriginEnv); v != "" {
		c.Site.Origin = v
	}

	if v := os.Getenv(downloadDirEnv); v != "" {
		c.Download.Dir = v
	}

	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func defaultConfig() Config {
	return Config{
		Site:     SiteConfig{Origin: "https://mmawatch.example"},
		HTTP:     HTTPConfig{Timeout: 60 * time.Second},
		Database: DatabaseConfig{Table: "video_details"},
		Pipeline: PipelineConfig{
			MaxPages:  300,
			ItemDelay: 500 * time.Millisecond,
			PageDelay: time.Second,
			SkipKnown: true,
		},
		Embed:    EmbedConfig{IndirectHosts: []string{"spcdn.xyz"}},
		Download: DownloadConfig{Dir: defaultDownloadDir(), Extension: ".mp4"},
		Server:   ServerConfig{Addr: ":3001", AllowedOrigins: []string{"*"}},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mmawatch")
	}
	return filepath.Join(home, "Documents", "mmawatch")
}
