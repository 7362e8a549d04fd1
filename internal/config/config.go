// Package config loads motectl settings from defaults, an optional
// motectl.yaml, MOTECTL_* environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved client configuration.
type Config struct {
	Server   string        `mapstructure:"server"`
	StateDir string        `mapstructure:"state_dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PerPage  int           `mapstructure:"per_page"`
	Log      Log           `mapstructure:"log"`
}

// Log configures the logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StatePath is the local session database.
func (c Config) StatePath() string { return filepath.Join(c.StateDir, "state.db") }

// DefaultDir is $XDG_CONFIG_HOME/motectl, falling back to ~/.config/motectl.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "motectl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "motectl")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server", "http://127.0.0.1:8090")
	v.SetDefault("state_dir", DefaultDir())
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("per_page", 20)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}

// Load resolves the configuration. file may be empty, in which case
// motectl.yaml is looked up in the default directory and may be absent.
// flags, when non-nil, override everything else for the flags that were set.
func Load(file string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MOTECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range map[string]string{
			"server":    "server",
			"state_dir": "state-dir",
			"timeout":   "timeout",
			"log.level": "log-level",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("motectl")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("state_dir"))
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server = strings.TrimRight(cfg.Server, "/")
	if cfg.PerPage <= 0 {
		cfg.PerPage = 20
	}
	return cfg, nil
}
