// Package config resolves runtime settings from defaults, an optional YAML
// file, a .env file and RELEVE_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/insightdelivered/releve-parser/internal/parser"
)

const envPrefix = "RELEVE"

// Config is the resolved application configuration.
type Config struct {
	Classifier parser.Keywords `mapstructure:"classifier"`
	Server     ServerConfig    `mapstructure:"server"`
	Batch      BatchConfig     `mapstructure:"batch"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Log        LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // empty disables persistence
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads the configuration. configFile may be empty, in which case only
// defaults and the environment apply. A missing .env file is not an error.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Batch.Workers < 1 {
		cfg.Batch.Workers = 1
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	kw := parser.DefaultKeywords()
	v.SetDefault("classifier.credit_keywords", kw.Credit)
	v.SetDefault("classifier.debit_keywords", kw.Debit)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("batch.workers", 4)
	v.SetDefault("database.path", "")
	v.SetDefault("log.level", "info")
}
