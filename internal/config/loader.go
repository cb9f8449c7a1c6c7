package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "commandforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "COMMANDFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "COMMANDFORGE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "COMMANDFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "COMMANDFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "COMMANDFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "COMMANDFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "COMMANDFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "COMMANDFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "COMMANDFORGE_LOG_SERVICE")
	setInt(&cfg.Runner.MaxConcurrent, "COMMANDFORGE_RUNNER_MAX_CONCURRENT")
	setDuration(&cfg.Runner.StageTimeout, "COMMANDFORGE_STAGE_TIMEOUT")
	setString(&cfg.Runner.WorkDir, "COMMANDFORGE_WORK_DIR")
	setString(&cfg.Runner.Tool, "COMMANDFORGE_TOOL")
	setString(&cfg.Runner.Branch, "COMMANDFORGE_BRANCH")
	setString(&cfg.Runner.CommitMessage, "COMMANDFORGE_COMMIT_MESSAGE")
	setString(&cfg.Artifact.Dir, "COMMANDFORGE_ARTIFACT_DIR")
	setInt64(&cfg.Cache.MaxSizeMB, "COMMANDFORGE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "COMMANDFORGE_CACHE_TTL")
	setBool(&cfg.Auth.Enabled, "COMMANDFORGE_AUTH_ENABLED")
	setInt(&cfg.Git.MaxConcurrent, "COMMANDFORGE_GIT_MAX_CONCURRENT")
	setString(&cfg.Git.Host, "COMMANDFORGE_GIT_HOST")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Runner.MaxConcurrent < 1 {
		return errors.New("runner.max_concurrent must be >= 1")
	}
	if cfg.Runner.StageTimeout <= 0 {
		return errors.New("runner.stage_timeout must be positive")
	}
	if cfg.Runner.Tool == "" {
		return errors.New("runner.tool is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
