package config

import "strings"

// normalizeConfig normalizes configuration values.
func normalizeConfig(c *Config) {
	// Normalize log level to lowercase
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "sqlite3" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "mssql" {
		c.Storage.Driver = "sqlserver"
	}

	c.Bus.Subject = strings.TrimSpace(c.Bus.Subject)
}
