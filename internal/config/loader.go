package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"./configs/development.yaml",
	"/etc/sessionshare/config.yaml",
	"/etc/sessionshare/config.yml",
}

// Defaults returns a configuration populated with default values
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{Backend: StorePostgres},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "sessionshare",
				User:     "postgres",
				SSLMode:  "disable",
			},
		},
		Redis:          RedisConfig{Addr: "localhost:6379"},
		Snowflake:      SnowflakeConfig{NodeID: 1},
		SessionSharing: map[string]string{},
		Environment:    "local",
	}
}

// Load loads the configuration from the specified file or default locations
func Load(configPath string) (*Config, error) {
	config := Defaults()
	if err := Decode(configPath, config); err != nil {
		return nil, err
	}
	if err := config.Finalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// Decode finds the config file (configPath or the first default location)
// and unmarshals it over out after expanding environment variables.
// A missing file leaves out untouched.
func Decode(configPath string, out any) error {
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" && fileExists(configPath) {
		fmt.Printf("[CONFIG] Loading config from: %s\n", configPath)
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		fmt.Printf("[CONFIG] No config file found, using defaults\n")
	}
	return nil
}

// Finalize applies environment overrides and validates the configuration
func (c *Config) Finalize() error {
	applyEnvOverrides(c)
	if c.SessionSharing == nil {
		c.SessionSharing = map[string]string{}
	}
	return validate(c)
}

// applyEnvOverrides lets deployments point at storage without editing the file
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SESSIONSHARE_STORE"); v != "" {
		config.Store.Backend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Database.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}
	if v := os.Getenv("SNOWFLAKE_NODE_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Snowflake.NodeID = n
		}
	}
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	switch config.Store.Backend {
	case StorePostgres:
		pg := config.Database.Postgres
		if pg.URL == "" {
			if pg.Host == "" {
				return fmt.Errorf("postgres host is required")
			}
			if pg.Database == "" {
				return fmt.Errorf("postgres database name is required")
			}
			if pg.User == "" {
				return fmt.Errorf("postgres user is required")
			}
		}
	case StoreRedis:
		if config.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.backend must be one of postgres, redis, memory (got %q)", config.Store.Backend)
	}

	if config.Snowflake.NodeID < 0 || config.Snowflake.NodeID > 1023 {
		return fmt.Errorf("snowflake.node_id must be between 0 and 1023")
	}

	for key := range config.SessionSharing {
		if !IsKnownOption(key) {
			return fmt.Errorf("session_sharing: unknown option %q", key)
		}
	}

	return nil
}
