// Package config loads all mediastage settings from the environment.
//
// A .env file in the working directory is honoured when present, so local
// development does not require exporting variables by hand. Every setting has
// a default except the store credentials, which must be provided explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/renderstack/mediastage/internal/errs"
	"github.com/renderstack/mediastage/internal/logger"
)

// Addressing styles accepted for S3_ADDRESSING_STYLE.
const (
	AddressingAuto    = "auto"
	AddressingVirtual = "virtual"
	AddressingPath    = "path"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Store   StoreConfig
	Staging StagingConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig carries the raw object-store settings as they arrive from the
// environment. EndpointURL keeps its scheme; the objstore layer splits it
// into host and TLS flag when the client is built.
type StoreConfig struct {
	Region          string
	AccessKey       string
	SecretKey       string
	Bucket          string
	EndpointURL     string
	AddressingStyle string
}

type StagingConfig struct {
	InputPrefix string
	OutputRoot  string
	ListLimit   int
	LocalDir    string
}

// Load reads configuration from the environment, applying defaults and
// validating the few settings that have a constrained value set.
func Load() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	listLimit, err := strconv.Atoi(getEnv("LIST_LIMIT_ITEMS", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid LIST_LIMIT_ITEMS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Store: StoreConfig{
			Region:          getEnv("S3_REGION", ""),
			AccessKey:       getEnv("S3_ACCESS_KEY", ""),
			SecretKey:       getEnv("S3_SECRET_KEY", ""),
			Bucket:          getEnv("S3_BUCKET_NAME", ""),
			EndpointURL:     getEnv("S3_ENDPOINT_URL", "https://s3.amazonaws.com"),
			AddressingStyle: normalizeAddressingStyle(getEnv("S3_ADDRESSING_STYLE", AddressingAuto)),
		},
		Staging: StagingConfig{
			InputPrefix: getEnv("S3_INPUT_DIR", "input"),
			OutputRoot:  getEnv("S3_OUTPUT_DIR", "output"),
			ListLimit:   listLimit,
			LocalDir:    getEnv("STAGE_LOCAL_DIR", "input"),
		},
	}

	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *StoreConfig) validate() error {
	missing := make([]string, 0, 3)
	if c.AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if c.SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if c.Bucket == "" {
		missing = append(missing, "S3_BUCKET_NAME")
	}
	if len(missing) > 0 {
		return errs.New(errs.ErrKindCredentials,
			fmt.Sprintf("missing store settings: %v", missing))
	}
	return nil
}

// normalizeAddressingStyle validates the addressing style, substituting auto
// for anything unrecognised. A bad value is worth a warning but never a
// startup failure.
func normalizeAddressingStyle(style string) string {
	switch style {
	case AddressingAuto, AddressingVirtual, AddressingPath:
		return style
	default:
		logger.Warn(fmt.Sprintf("unknown S3_ADDRESSING_STYLE %q, falling back to %q", style, AddressingAuto))
		return AddressingAuto
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
