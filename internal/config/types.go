// Package config loads sqlgraph configuration.
//
// Values are layered, lowest to highest precedence: built-in defaults, the
// project config file (sqlgraph.yaml), SQLGRAPH_ environment variables and
// explicitly set command-line flags.
package config

import (
	"strconv"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // mysql-cli, mysql

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Client is the mysql binary used by the mysql-cli gateway
	Client string `koanf:"client"`

	// Params holds driver-specific connection options
	Params map[string]string `koanf:"params"`
}

// S3Config holds settings for the s3 export kind.
type S3Config struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
}

// ExportConfig holds settings for DisplayNode destinations.
type ExportConfig struct {
	Python          string   `koanf:"python"`
	SheetScript     string   `koanf:"sheet_script"`
	CredentialsPath string   `koanf:"credentials_path"`
	S3              S3Config `koanf:"s3"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Config holds all sqlgraph configuration options.
type Config struct {
	ProjectRoot     string       `koanf:"project_root"`
	DefaultDatabase string       `koanf:"default_database"`
	CachePrefix     string       `koanf:"cache_prefix"`
	StatePath       string       `koanf:"state_path"`
	LogFile         string       `koanf:"log_file"`
	LogLevel        string       `koanf:"log_level"`
	Verbose         bool         `koanf:"verbose"`
	Target          TargetConfig `koanf:"target"`
	Export          ExportConfig `koanf:"export"`
	Server          ServerConfig `koanf:"server"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// GatewayConfig converts the target into gateway connection settings.
func (c *Config) GatewayConfig() adapter.Config {
	params := make(map[string]string, len(c.Target.Params))
	for k, v := range c.Target.Params {
		params[k] = v
	}
	return adapter.Config{
		Type:     c.Target.Type,
		Host:     c.Target.Host,
		Port:     c.Target.Port,
		User:     c.Target.User,
		Password: c.Target.Password,
		Client:   c.Target.Client,
		Database: c.DefaultDatabase,
		Params:   params,
	}
}

// Redacted returns the configuration as a flat key/value list with the
// password masked, suitable for display.
func (c *Config) Redacted() [][2]string {
	password := ""
	if c.Target.Password != "" {
		password = "********"
	}
	return [][2]string{
		{"project_root", c.ProjectRoot},
		{"config_file", c.ConfigFile},
		{"default_database", c.DefaultDatabase},
		{"cache_prefix", c.CachePrefix},
		{"state_path", c.StatePath},
		{"log_file", c.LogFile},
		{"log_level", c.LogLevel},
		{"target.type", c.Target.Type},
		{"target.host", c.Target.Host},
		{"target.port", strconv.Itoa(c.Target.Port)},
		{"target.user", c.Target.User},
		{"target.password", password},
		{"target.client", c.Target.Client},
		{"export.python", c.Export.Python},
		{"export.sheet_script", c.Export.SheetScript},
		{"export.credentials_path", c.Export.CredentialsPath},
		{"export.s3.region", c.Export.S3.Region},
		{"export.s3.endpoint", c.Export.S3.Endpoint},
		{"server.addr", c.Server.Addr},
	}
}
