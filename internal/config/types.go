package config

import (
	"time"

	"nestql/internal/entitymeta"
)

// Config holds the application configuration.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Entities      []EntityConfig      `mapstructure:"entities"`
}

// DatabaseConfig holds database connection parameters.
type DatabaseConfig struct {
	// ConnectionString is a complete go-sql-driver/mysql Data Source Name.
	// When set, it overrides the discrete Host/Port/User/Password/Database
	// fields. Configured via "dsn" in YAML or NESTQL_DATABASE_DSN.
	ConnectionString string `mapstructure:"dsn"`
	// ConnectionStringFile is a path to a file containing the DSN (for
	// secrets management).
	ConnectionStringFile string `mapstructure:"dsn_file"`

	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password_file"`
	Database     string `mapstructure:"database"`

	// TLSMode controls TLS behavior: off, skip-verify, verify-ca, verify-full.
	TLSMode   string `mapstructure:"tls_mode"`
	TLSCAFile string `mapstructure:"tls_ca_file"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// ConnectionTimeout is the max time to wait for the database on startup.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	GraphiQLEnabled    bool          `mapstructure:"graphiql_enabled"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`

	CORSEnabled          bool     `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string `mapstructure:"cors_allowed_headers"`
	CORSAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int      `mapstructure:"cors_max_age"`
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Environment    string        `mapstructure:"environment"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
	TracingEnabled bool          `mapstructure:"tracing_enabled"`
	Logging        LoggingConfig `mapstructure:"logging"`

	// OTLP is the exporter target shared by all signals.
	OTLP OTLPConfig `mapstructure:"otlp"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`  // debug, info, warn, error
	Format      string `mapstructure:"format"` // json, text
	OTLPEnabled bool   `mapstructure:"otlp_enabled"`
}

// OTLPConfig holds OTLP exporter configuration.
type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Protocol string `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure bool   `mapstructure:"insecure"`
}

// EntityConfig declares one entity: its backing table, columns,
// relationships, and policies.
type EntityConfig struct {
	Name          string               `mapstructure:"name"`
	Table         string               `mapstructure:"table"`
	Columns       []ColumnConfig       `mapstructure:"columns"`
	Relationships []RelationshipConfig `mapstructure:"relationships"`
	// CreatePolicy is a SQL predicate over @item.<column> guarding inserts.
	CreatePolicy string `mapstructure:"create_policy"`
	// ReadPolicy is a boolean expression over item.<column> filtering reads.
	ReadPolicy string `mapstructure:"read_policy"`
}

// ColumnConfig declares one column of an entity.
type ColumnConfig struct {
	Name          string `mapstructure:"name"`
	Type          string `mapstructure:"type"` // string, int, float, bool
	PrimaryKey    bool   `mapstructure:"primary_key"`
	AutoIncrement bool   `mapstructure:"auto_increment"`
	Nullable      bool   `mapstructure:"nullable"`
	HasDefault    bool   `mapstructure:"has_default"`
}

// RelationshipConfig declares one relationship field of an entity.
type RelationshipConfig struct {
	Name         string   `mapstructure:"name"`
	Cardinality  string   `mapstructure:"cardinality"` // one, many
	Target       string   `mapstructure:"target"`
	SourceFields []string `mapstructure:"source_fields"`
	TargetFields []string `mapstructure:"target_fields"`

	// LinkingObject names a linking table; setting it makes the
	// relationship many-to-many.
	LinkingObject       string         `mapstructure:"linking_object"`
	LinkingSourceFields []string       `mapstructure:"linking_source_fields"`
	LinkingTargetFields []string       `mapstructure:"linking_target_fields"`
	LinkingAttributes   []ColumnConfig `mapstructure:"linking_attributes"`
}

// Definitions converts the configured entities into model definitions.
func (c *Config) Definitions() []entitymeta.Definition {
	defs := make([]entitymeta.Definition, 0, len(c.Entities))
	for _, ec := range c.Entities {
		def := entitymeta.Definition{
			Name:         ec.Name,
			Table:        ec.Table,
			CreatePolicy: ec.CreatePolicy,
			ReadPolicy:   ec.ReadPolicy,
		}
		for _, cc := range ec.Columns {
			def.Columns = append(def.Columns, cc.column())
		}
		for _, rc := range ec.Relationships {
			rd := entitymeta.RelationshipDefinition{
				Name:                rc.Name,
				Cardinality:         entitymeta.Cardinality(rc.Cardinality),
				TargetEntity:        rc.Target,
				SourceFields:        rc.SourceFields,
				TargetFields:        rc.TargetFields,
				LinkingObject:       rc.LinkingObject,
				LinkingSourceFields: rc.LinkingSourceFields,
				LinkingTargetFields: rc.LinkingTargetFields,
			}
			for _, ac := range rc.LinkingAttributes {
				rd.LinkingAttributes = append(rd.LinkingAttributes, ac.column())
			}
			def.Relationships = append(def.Relationships, rd)
		}
		defs = append(defs, def)
	}
	return defs
}

// Policies returns the raw per-entity policy strings keyed by entity name.
func (c *Config) Policies() map[string]struct{ Create, Read string } {
	policies := make(map[string]struct{ Create, Read string }, len(c.Entities))
	for _, ec := range c.Entities {
		if ec.CreatePolicy == "" && ec.ReadPolicy == "" {
			continue
		}
		policies[ec.Name] = struct{ Create, Read string }{
			Create: ec.CreatePolicy,
			Read:   ec.ReadPolicy,
		}
	}
	return policies
}

func (cc ColumnConfig) column() entitymeta.Column {
	return entitymeta.Column{
		Name:            cc.Name,
		Type:            entitymeta.ColumnType(cc.Type),
		IsPrimaryKey:    cc.PrimaryKey,
		IsAutoIncrement: cc.AutoIncrement,
		IsNullable:      cc.Nullable,
		HasDefault:      cc.HasDefault,
	}
}
