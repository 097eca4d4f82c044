package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// FlagBinding ties a configuration key to a command-line flag.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

// New loads configuration from defaults, an optional config.yaml,
// GMAIL_SORTER_* environment variables and the given flags. An explicit file
// path, when given, must exist. Flags are bound before the config file is
// searched, so a config_dir flag also moves the search path.
func New(file string, flags ...FlagBinding) (*Config, error) {
	v := NewEmptyViper()

	// Environment variables
	v.SetEnvPrefix("GMAIL_SORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range flags {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", b.Flag.Name, err)
		}
	}

	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(v.GetString("config_dir"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gmailsorter")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "gmailsorter")
	}
	return ".gmailsorter"
}

func setDefaults(v *viper.Viper) {
	dir := defaultConfigDir()
	v.SetDefault("config_dir", dir)
	v.SetDefault("db_path", "")

	v.SetDefault("gmail.user", "me")
	v.SetDefault("gmail.inbox_label", "INBOX")
	v.SetDefault("gmail.page_size", 500)
	v.SetDefault("gmail.max_messages", 500)
	v.SetDefault("gmail.redirect_timeout", "120s")
	v.SetDefault("gmail.open_browser", true)

	v.SetDefault("run.dry_run", false)
	v.SetDefault("run.record_history", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
}

// ConfigDir is where credentials, the token cache and the database live.
func (c *Config) ConfigDir() string {
	return c.v.GetString("config_dir")
}

// DBPath returns the database path, defaulting to ConfigDir/gmailsorter.db.
func (c *Config) DBPath() string {
	if p := c.v.GetString("db_path"); p != "" {
		return p
	}
	return filepath.Join(c.ConfigDir(), "gmailsorter.db")
}

// LogFile is the log destination for commands that own the terminal.
func (c *Config) LogFile() string {
	if p := c.v.GetString("logging.file"); p != "" {
		return p
	}
	return filepath.Join(c.ConfigDir(), "gmailsorter.log")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
