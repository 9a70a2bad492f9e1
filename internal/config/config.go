package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	apperrors "dumpkeep/internal/errors"
)

type Config struct {
	LogJSON       bool          `mapstructure:"log_json"`
	NoColor       bool          `mapstructure:"no_color"`
	AllowInsecure bool          `mapstructure:"allow_insecure"`
	Database      Database      `mapstructure:"database"`
	Backup        Backup        `mapstructure:"backup"`
	Retention     Retention     `mapstructure:"retention"`
	Destinations  []Destination `mapstructure:"destinations"`
	Upload        Upload        `mapstructure:"upload"`
	Notifications Notifications `mapstructure:"notifications"`
	Schedule      Schedule      `mapstructure:"schedule"`
}

type Database struct {
	Engine    string   `mapstructure:"engine"`
	Host      string   `mapstructure:"host"`
	Port      int      `mapstructure:"port"`
	User      string   `mapstructure:"user"`
	Password  string   `mapstructure:"password"`
	Databases []string `mapstructure:"databases"`
}

type Backup struct {
	Dir         string        `mapstructure:"dir"`
	Compression string        `mapstructure:"compression"`
	DumpTimeout time.Duration `mapstructure:"dump_timeout"`
}

type Retention struct {
	MaxAge      time.Duration            `mapstructure:"max_age"`
	MaxCount    int                      `mapstructure:"max_count"`
	PerDatabase map[string]RetentionRule `mapstructure:"per_database"`
}

type RetentionRule struct {
	MaxAge   time.Duration `mapstructure:"max_age"`
	MaxCount int           `mapstructure:"max_count"`
}

type Destination struct {
	ID  string `mapstructure:"id"`
	URI string `mapstructure:"uri"`
}

type Upload struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type Notifications struct {
	Email    Email     `mapstructure:"email"`
	Telegram Telegram  `mapstructure:"telegram"`
	Webhooks []Webhook `mapstructure:"webhooks"`
}

type Email struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type Webhook struct {
	URL      string            `mapstructure:"url"`
	Method   string            `mapstructure:"method"`
	Template string            `mapstructure:"template"`
	Headers  map[string]string `mapstructure:"headers"`
}

type Schedule struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
	At       string `mapstructure:"at"`
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("dumpkeep")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".dumpkeep"))
		}
	}

	v.SetEnvPrefix("DUMPKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("allow_insecure", false)
	v.SetDefault("database.engine", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("backup.dir", "./backups")
	v.SetDefault("backup.compression", "gzip")
	v.SetDefault("backup.dump_timeout", "30m")
	v.SetDefault("retention.max_count", 10)
	v.SetDefault("upload.max_attempts", 3)
	v.SetDefault("upload.backoff_base", "2s")
	v.SetDefault("upload.backoff_cap", "1m")
	v.SetDefault("upload.timeout", "15m")
	v.SetDefault("schedule.interval", "daily")
	v.SetDefault("schedule.at", "02:00")
	v.SetDefault("schedule.timezone", "UTC")

	return v
}

// Load reads the config file (or the default search paths when configPath is
// empty), applies DUMPKEEP_* environment overrides and returns the result.
// There is no package-level config state; callers pass the value down.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadAndWatch behaves like Load and additionally re-reads the file on change,
// delivering the fresh config through onChange. Used by the schedule daemon so
// config edits take effect without a restart.
func LoadAndWatch(configPath string, onChange func(*Config)) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err == nil {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var next Config
			if err := v.Unmarshal(&next); err == nil {
				onChange(&next)
			}
		})
	}

	return cfg, nil
}

// Validate rejects destination configurations that can never produce a
// useful run. The database list is deliberately not checked here: it may be
// empty when run --all discovers databases or --database supplies them, and
// the orchestrator rejects an empty resolved set on its own.
func (c *Config) Validate() error {
	if len(c.Destinations) == 0 {
		return apperrors.New(apperrors.TypeConfig, "no destinations configured", "Configure at least one destination (local directory, ftp, sftp or s3 URI).")
	}
	seen := make(map[string]bool, len(c.Destinations))
	for _, d := range c.Destinations {
		if d.URI == "" {
			return apperrors.New(apperrors.TypeConfig, "destination with empty uri", "Every destination needs a uri.")
		}
		id := d.ID
		if id == "" {
			id = d.URI
		}
		if seen[id] {
			return apperrors.New(apperrors.TypeConfig, fmt.Sprintf("duplicate destination id %q", id), "Destination ids must be unique.")
		}
		seen[id] = true
	}
	return nil
}

// RuleFor returns the retention rule for a database, falling back to the
// default rule when no per-database override exists.
func (r Retention) RuleFor(database string) RetentionRule {
	if rule, ok := r.PerDatabase[database]; ok {
		return rule
	}
	return RetentionRule{MaxAge: r.MaxAge, MaxCount: r.MaxCount}
}
