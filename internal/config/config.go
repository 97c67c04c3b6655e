package config

import (
	"fmt"
	"net/url"
)

// Config represents the storage and session-sharing configuration shared by
// the web service and the operator CLI.
type Config struct {
	Store          StoreConfig       `yaml:"store"`
	Database       DatabaseConfig    `yaml:"database"`
	Redis          RedisConfig       `yaml:"redis"`
	Snowflake      SnowflakeConfig   `yaml:"snowflake"`
	SessionSharing map[string]string `yaml:"session_sharing"`             // bootstrap option values, see Settings
	Environment    string            `yaml:"environment" default:"local"` // local, dev, prod
}

// Store backends
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// StoreConfig selects the persistence backend for accounts, mappings and settings
type StoreConfig struct {
	Backend string `yaml:"backend" default:"postgres"` // postgres, redis, memory
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	URL      string `yaml:"url"` // full DSN, overrides the discrete fields when set
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"sessionshare"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"disable"` // disable, require, verify-ca, verify-full
}

// RedisConfig holds the connection settings for the forum's redis database
type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SnowflakeConfig holds the node id used for generated account ids
type SnowflakeConfig struct {
	NodeID int64 `yaml:"node_id" default:"1"`
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redacted returns a log-safe description of the connection target
func (p *PostgresConfig) Redacted() string {
	if p.URL != "" {
		if u, err := url.Parse(p.URL); err == nil {
			return u.Redacted()
		}
		return "postgres://<unparseable>"
	}
	return fmt.Sprintf("%s@%s:%d/%s", p.User, p.Host, p.Port, p.Database)
}
