// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Template store backends.
const (
	StoreFile   = "file"
	StoreS3     = "s3"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Media providers.
const (
	ProviderFFmpeg = "ffmpeg"
	ProviderMemory = "memory"
)

// Static errors for configuration validation.
var (
	// ErrS3BucketRequired is returned when TEMPLATE_STORE=s3 and S3_BUCKET is not set.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required for the s3 template store")
	// ErrS3RegionRequired is returned when TEMPLATE_STORE=s3 and S3_REGION is not set.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required for the s3 template store")
	// ErrInvalid is returned when a value fails validation.
	ErrInvalid = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8787" json:"port" validate:"min=1,max=65535"`

	// Workspace settings
	WorkspaceDir string `env:"WORKSPACE_DIR, default=/tmp/clipedit" json:"workspace_dir" validate:"required"`

	// Editing settings
	HistoryCapacity int  `env:"HISTORY_CAPACITY, default=2" json:"history_capacity" validate:"min=1"`
	TemplateSlots   int  `env:"TEMPLATE_SLOTS, default=5" json:"template_slots" validate:"min=1,max=64"`
	SmoothConcat    bool `env:"SMOOTH_CONCAT, default=false" json:"smooth_concat"`

	// Template persistence
	TemplateStore  string `env:"TEMPLATE_STORE, default=file" json:"template_store" validate:"oneof=file s3 sqlite memory"`
	TemplatePath   string `env:"TEMPLATE_PATH, default=service_files/templates.json" json:"template_path" validate:"required_if=TemplateStore file"`
	TemplateDBPath string `env:"TEMPLATE_DB_PATH, default=service_files/templates.db" json:"template_db_path" validate:"required_if=TemplateStore sqlite"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty" validate:"required_if=TemplateStore s3"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty" validate:"required_if=TemplateStore s3"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3TemplateKey      string `env:"S3_TEMPLATE_KEY, default=templates.json" json:"s3_template_key"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Media settings
	Provider   string `env:"PROVIDER, default=ffmpeg" json:"provider" validate:"oneof=ffmpeg memory"`
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	VideoCodec string `env:"VIDEO_CODEC, default=libx264" json:"video_codec"`

	// Logging settings: format is "json" or "text", level one of
	// "debug", "info", "warn", "error".
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.TemplateStore = strings.ToLower(cfg.TemplateStore)
	cfg.Provider = strings.ToLower(cfg.Provider)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its validation tags.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	for _, fe := range verrs {
		switch fe.StructField() {
		case "S3Bucket":
			return ErrS3BucketRequired
		case "S3Region":
			return ErrS3RegionRequired
		}
	}
	fe := verrs[0]
	return fmt.Errorf("%w: %s failed %q (got %v)", ErrInvalid, fe.StructField(), fe.Tag(), fe.Value())
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, WorkspaceDir: %s, HistoryCapacity: %d, TemplateSlots: %d, SmoothConcat: %t, TemplateStore: %s, TemplatePath: %s, TemplateDBPath: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, S3TemplateKey: %s, AWSAccessKeyID: %s, Provider: %s, FFmpegPath: %s, VideoCodec: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.WorkspaceDir,
		c.HistoryCapacity,
		c.TemplateSlots,
		c.SmoothConcat,
		c.TemplateStore,
		c.TemplatePath,
		c.TemplateDBPath,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.S3TemplateKey,
		mask(c.AWSAccessKeyID),
		c.Provider,
		c.FFmpegPath,
		c.VideoCodec,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
