package config

import (
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/internal/processor"
)

// Default configuration values.
const (
	DefaultStateFile  = ".sqlgraph/state.db"
	DefaultLogLevel   = "info"
	DefaultTargetType = "mysql-cli"
	DefaultHost       = "localhost"
	DefaultPort       = 3306
	DefaultClient     = "mysql"
	DefaultPython     = "python3"
	DefaultServerAddr = "127.0.0.1:8080"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "sqlgraph.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "sqlgraph.yml"

// EnvPrefix prefixes every environment variable read as configuration.
const EnvPrefix = "SQLGRAPH_"

func defaults() map[string]any {
	return map[string]any{
		"default_database":        processor.DefaultDatabase,
		"cache_prefix":            materialize.DefaultPrefix,
		"state_path":              DefaultStateFile,
		"log_level":               DefaultLogLevel,
		"verbose":                 false,
		"target.type":             DefaultTargetType,
		"target.host":             DefaultHost,
		"target.port":             DefaultPort,
		"target.client":           DefaultClient,
		"export.python":           DefaultPython,
		"export.sheet_script":     processor.DefaultSheetScript,
		"export.credentials_path": processor.DefaultCredentialsPath,
		"server.addr":             DefaultServerAddr,
	}
}
