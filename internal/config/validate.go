package config

import (
	"fmt"
	"strings"
)

var validColumnTypes = map[string]struct{}{
	"": {}, "string": {}, "int": {}, "float": {}, "bool": {},
}

// Validate checks the configuration for errors that are cheaper to report
// here, in configuration terms, than at model build or request time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.ConnectionString == "" && c.Database.ConnectionStringFile == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required when database.dsn is not set")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required when database.dsn is not set")
		}
	}

	switch c.Database.TLSMode {
	case "", "off", "skip-verify", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("database.tls_mode must be one of off, skip-verify, verify-ca, verify-full; got %q", c.Database.TLSMode)
	}
	if (c.Database.TLSMode == "verify-ca" || c.Database.TLSMode == "verify-full") && c.Database.TLSCAFile == "" {
		return fmt.Errorf("database.tls_ca_file is required for tls_mode %q", c.Database.TLSMode)
	}

	switch strings.ToLower(c.Observability.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("observability.logging.level must be one of debug, info, warn, error; got %q", c.Observability.Logging.Level)
	}
	switch strings.ToLower(c.Observability.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("observability.logging.format must be json or text; got %q", c.Observability.Logging.Format)
	}

	if len(c.Entities) == 0 {
		return fmt.Errorf("at least one entity must be configured")
	}
	for i, entity := range c.Entities {
		if entity.Name == "" {
			return fmt.Errorf("entities[%d]: name is required", i)
		}
		if entity.Table == "" {
			return fmt.Errorf("entity %s: table is required", entity.Name)
		}
		if len(entity.Columns) == 0 {
			return fmt.Errorf("entity %s: at least one column is required", entity.Name)
		}
		for _, col := range entity.Columns {
			if col.Name == "" {
				return fmt.Errorf("entity %s: column with empty name", entity.Name)
			}
			if _, ok := validColumnTypes[col.Type]; !ok {
				return fmt.Errorf("entity %s: column %s: invalid type %q", entity.Name, col.Name, col.Type)
			}
		}
		for _, rel := range entity.Relationships {
			if rel.Name == "" {
				return fmt.Errorf("entity %s: relationship with empty name", entity.Name)
			}
			if rel.Target == "" {
				return fmt.Errorf("entity %s: relationship %s: target is required", entity.Name, rel.Name)
			}
			switch rel.Cardinality {
			case "", "one", "many":
			default:
				return fmt.Errorf("entity %s: relationship %s: cardinality must be one or many, got %q", entity.Name, rel.Name, rel.Cardinality)
			}
			if rel.LinkingObject != "" && (len(rel.LinkingSourceFields) == 0 || len(rel.LinkingTargetFields) == 0) {
				return fmt.Errorf("entity %s: relationship %s: linking_source_fields and linking_target_fields are required with linking_object", entity.Name, rel.Name)
			}
		}
	}

	return nil
}
