package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the treewalk CLI configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Output OutputConfig `mapstructure:"output"`
	Redact RedactConfig `mapstructure:"redact"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	// Format is table or json.
	Format string `mapstructure:"format"`
	// PathStyle is pointer (/a/0/b) or dotted (a[0].b).
	PathStyle string `mapstructure:"path_style"`
}

// RedactConfig configures the redact command.
type RedactConfig struct {
	Mask  string   `mapstructure:"mask"`
	Match []string `mapstructure:"match"`
}

const (
	FormatTable = "table"
	FormatJSON  = "json"

	PathPointer = "pointer"
	PathDotted  = "dotted"
)

// LoadConfig reads treewalk.yaml from the working directory or
// ~/.config/treewalk (or file when set), TREEWALK_* environment variables and
// the bound flags, in increasing order of precedence.
func LoadConfig(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "warn")
	v.SetDefault("output.format", FormatTable)
	v.SetDefault("output.path_style", PathPointer)
	v.SetDefault("redact.mask", "***")
	v.SetDefault("redact.match", []string{"password", "secret", "token"})

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("treewalk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "treewalk"))
		}
	}

	v.SetEnvPrefix("TREEWALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range map[string]string{
			"log.level":         "log-level",
			"output.format":     "format",
			"output.path_style": "path-style",
			"redact.mask":       "mask",
			"redact.match":      "match",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Output.Format {
	case FormatTable, FormatJSON:
	default:
		return fmt.Errorf("output.format must be %q or %q, got: %s", FormatTable, FormatJSON, cfg.Output.Format)
	}
	switch cfg.Output.PathStyle {
	case PathPointer, PathDotted:
	default:
		return fmt.Errorf("output.path_style must be %q or %q, got: %s", PathPointer, PathDotted, cfg.Output.PathStyle)
	}
	return nil
}
