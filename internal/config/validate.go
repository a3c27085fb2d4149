package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validDrivers   = []string{"sqlite", "sqlserver", "postgres"}
)

// validateConfig validates the configuration and returns an error if invalid.
func validateConfig(c *Config) error {
	for _, validate := range []func() error{
		func() error { return validateServerConfig(c.Server) },
		func() error { return validateStorageConfig(c.Storage) },
		func() error { return validateCacheConfig(c.Cache) },
		func() error { return validateEngineConfig(c.Engine) },
		func() error { return validateBusConfig(c.Bus) },
		func() error { return validateLogConfig(c.Log) },
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// bounded is a named duration with its accepted range.
type bounded struct {
	name     string
	value    time.Duration
	min, max time.Duration
}

func (b bounded) check() error {
	if b.value < b.min || b.value > b.max {
		return fmt.Errorf("%s must be between %s and %s, got %s", b.name, b.min, b.max, b.value)
	}
	return nil
}

// validateServerConfig validates server configuration.
func validateServerConfig(s ServerConfig) error {
	if err := validateListenAddr(s.Addr); err != nil {
		return err
	}

	for _, b := range []bounded{
		{"server.read_timeout", s.ReadTimeout, time.Second, 5 * time.Minute},
		{"server.write_timeout", s.WriteTimeout, time.Second, 5 * time.Minute},
		{"server.idle_timeout", s.IdleTimeout, time.Second, 30 * time.Minute},
		{"server.shutdown_timeout", s.ShutdownTimeout, time.Millisecond, 5 * time.Minute},
	} {
		if err := b.check(); err != nil {
			return err
		}
	}

	if s.MaxBatch <= 0 {
		return fmt.Errorf("server.max_batch must be greater than 0")
	}
	return nil
}

// validateListenAddr accepts host:port where host is empty, an IP or a resolvable name.
func validateListenAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("server.addr %q: %w", addr, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("server.addr port %q must be a number in 1-65535", port)
	}

	switch {
	case host == "", host == "localhost", net.ParseIP(host) != nil:
		return nil
	}
	if _, err := net.LookupHost(host); err != nil {
		return fmt.Errorf("server.addr host %q does not resolve", host)
	}
	return nil
}

// validateStorageConfig validates storage configuration.
func validateStorageConfig(s StorageConfig) error {
	switch {
	case !slices.Contains(validDrivers, s.Driver):
		return fmt.Errorf("storage.driver must be one of: %s", strings.Join(validDrivers, ", "))
	case s.DSN == "":
		return fmt.Errorf("storage.dsn cannot be empty")
	case s.Driver == "sqlite" && strings.Contains(s.DSN, ".."):
		return fmt.Errorf("storage.dsn must not contain '..'")
	case s.MaxOpenConns < 1 || s.MaxOpenConns > 1000:
		return fmt.Errorf("storage.max_open_conns must be in 1-1000, got %d", s.MaxOpenConns)
	case s.MaxIdleConns < 0 || s.MaxIdleConns > s.MaxOpenConns:
		return fmt.Errorf("storage.max_idle_conns must be in 0-%d, got %d", s.MaxOpenConns, s.MaxIdleConns)
	}
	return bounded{"storage.conn_max_lifetime", s.ConnMaxLifetime, time.Minute, 24 * time.Hour}.check()
}

// validateCacheConfig validates chain cache configuration.
func validateCacheConfig(c CacheConfig) error {
	if !c.Enabled {
		return nil
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than 0 when cache is enabled")
	}
	if c.TTL > time.Hour {
		return fmt.Errorf("cache.ttl too large (max 1h)")
	}
	if c.Size <= 0 {
		return fmt.Errorf("cache.size must be greater than 0 when cache is enabled")
	}
	return nil
}

// validateEngineConfig validates engine configuration.
func validateEngineConfig(e EngineConfig) error {
	if e.Workers <= 0 {
		return fmt.Errorf("engine.workers must be greater than 0")
	}
	if e.Workers > 1000 {
		return fmt.Errorf("engine.workers too large (max 1000)")
	}
	return nil
}

// validateBusConfig validates change notification configuration.
func validateBusConfig(b BusConfig) error {
	if !b.Enabled {
		return nil
	}
	if b.URL == "" {
		return fmt.Errorf("bus.url is required when bus is enabled")
	}
	for _, server := range strings.Split(b.URL, ",") {
		u, err := url.Parse(strings.TrimSpace(server))
		if err != nil || u.Host == "" {
			return fmt.Errorf("bus.url invalid server: %s", server)
		}
	}
	if b.Subject == "" {
		return fmt.Errorf("bus.subject is required when bus is enabled")
	}
	if strings.ContainsAny(b.Subject, " \t*>") {
		return fmt.Errorf("bus.subject must be a literal subject without spaces or wildcards")
	}
	return nil
}

// validateLogConfig validates log configuration.
func validateLogConfig(l LogConfig) error {
	if !slices.Contains(validLogLevels, strings.ToLower(l.Level)) {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, fatal, panic")
	}
	return nil
}
