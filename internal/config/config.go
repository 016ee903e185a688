package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   string `env:"PORT" envDefault:"8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	DatasetDriver string `env:"DATASET_DRIVER" envDefault:"xlsx"`
	DatasetPath   string `env:"DATASET_PATH" envDefault:"./material.xlsx"`
	DBPath        string `env:"DB_PATH" envDefault:"./dev.db"`

	S3 S3

	GeometryReader       string        `env:"GEOMETRY_READER" envDefault:"native"`
	GeometryCommand      string        `env:"GEOMETRY_COMMAND"`
	GeometryParseTimeout time.Duration `env:"GEOMETRY_PARSE_TIMEOUT" envDefault:"30s"`

	UploadDir      string `env:"UPLOAD_DIR"`
	UploadMaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"33554432"`

	TokenSecret string `env:"TOKEN_SECRET"`
}

// S3 locates a reference dataset stored in an S3-compatible bucket.
type S3 struct {
	Endpoint        string `env:"S3_ENDPOINT"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket          string `env:"S3_BUCKET"`
	Key             string `env:"S3_KEY"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	UseSSL          bool   `env:"S3_USE_SSL" envDefault:"true"`
}

// Load reads environment variables and returns a populated Config.
func Load() (Config, error) {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// IsDev reports whether the process runs with local development defaults.
func (c Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "local"
}

func (c Config) validate() error {
	switch c.DatasetDriver {
	case "xlsx", "csv", "sqlite":
	case "s3":
		if c.S3.Bucket == "" || c.S3.Key == "" {
			return fmt.Errorf("DATASET_DRIVER=s3 requires S3_BUCKET and S3_KEY")
		}
	default:
		return fmt.Errorf("unknown DATASET_DRIVER %q", c.DatasetDriver)
	}

	switch c.GeometryReader {
	case "native":
	case "command":
		if c.GeometryCommand == "" {
			return fmt.Errorf("GEOMETRY_READER=command requires GEOMETRY_COMMAND")
		}
	default:
		return fmt.Errorf("unknown GEOMETRY_READER %q", c.GeometryReader)
	}

	if c.GeometryParseTimeout <= 0 {
		return fmt.Errorf("GEOMETRY_PARSE_TIMEOUT must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}

	return nil
}
