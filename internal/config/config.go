package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full dbwarden configuration. See Load for its sources.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Bus     BusConfig     `mapstructure:"bus" yaml:"bus"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBatch        int           `mapstructure:"max_batch" yaml:"max_batch"` // samples per evaluate request
}

type StorageConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite, sqlserver, postgres
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Size    int           `mapstructure:"size" yaml:"size"`
}

type EngineConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type BusConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Subject string `mapstructure:"subject" yaml:"subject"`
	Name    string `mapstructure:"name" yaml:"name"` // NATS connection name
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error, fatal, panic
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"` // human-readable console output
}

// Load builds the configuration from defaults, an optional YAML file and
// DBWARDEN_* environment variables, in increasing precedence, then
// normalizes and validates it.
//
// When configFile is empty, dbwarden.yaml is looked up in the working
// directory and the user config directory, and may be absent. An explicit
// configFile must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DBWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	// Secrets usually arrive through the environment only.
	for key, env := range map[string]string{
		"storage.dsn": "DBWARDEN_STORAGE_DSN",
		"bus.url":     "DBWARDEN_BUS_URL",
	} {
		if _, ok := os.LookupEnv(env); ok {
			_ = v.BindEnv(key, env)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	normalizeConfig(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("dbwarden")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir := userConfigDir(); dir != "" {
		v.AddConfigPath(dir)
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("config file %s: %w", v.ConfigFileUsed(), err)
	}
	return nil
}

// userConfigDir is %APPDATA%/dbwarden on Windows and $HOME/.dbwarden elsewhere.
func userConfigDir() string {
	base, name := os.Getenv("HOME"), ".dbwarden"
	if runtime.GOOS == "windows" {
		base, name = os.Getenv("APPDATA"), "dbwarden"
	}
	if base == "" {
		return ""
	}
	return filepath.Join(base, name)
}
