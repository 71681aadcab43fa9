package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	filegatehttp "github.com/sagarc03/filegate/http"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "FILEGATE"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for filegate.
type Config struct {
	Env     string                  `mapstructure:"env"`
	Server  ServerConfig            `mapstructure:"server"`
	Store   StoreConfig             `mapstructure:"store"`
	Upload  UploadConfig            `mapstructure:"upload"`
	CORS    filegatehttp.CORSConfig `mapstructure:"cors"`
	Metrics MetricsConfig           `mapstructure:"metrics"`
	Tracing TracingConfig           `mapstructure:"tracing"`
	Log     LogConfig               `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"min=1"` // seconds
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects and configures the object store backend.
type StoreConfig struct {
	Type             string `mapstructure:"type" validate:"required,oneof=s3 filesystem"`
	Endpoint         string `mapstructure:"endpoint" validate:"required_if=Type s3"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	Bucket           string `mapstructure:"bucket" validate:"required,min=3,max=63"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	PartSize         uint64 `mapstructure:"part_size" validate:"omitempty,min=5242880"`
	Path             string `mapstructure:"path" validate:"required_if=Type filesystem"`
	OperationTimeout int    `mapstructure:"operation_timeout" validate:"min=1"` // seconds
}

// Timeout returns OperationTimeout as a duration.
func (s StoreConfig) Timeout() time.Duration {
	return time.Duration(s.OperationTimeout) * time.Second
}

// UploadConfig holds upload policy.
type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size" validate:"min=1"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"min=0,max=1"`
	ServiceName string  `mapstructure:"service_name"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// IsProd reports whether env selects production logging.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"host":            "server.host",
	"port":            "server.port",
	"store-type":      "store.type",
	"store-endpoint":  "store.endpoint",
	"store-path":      "store.path",
	"bucket":          "store.bucket",
	"max-upload-size": "upload.max_size",
	"log-level":       "log.level",
	"metrics":         "metrics.enabled",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30)

	v.SetDefault("store.type", "s3")
	v.SetDefault("store.endpoint", "localhost:9000")
	v.SetDefault("store.access_key", "minioadmin")
	v.SetDefault("store.secret_key", "minioadmin123")
	v.SetDefault("store.bucket", "files")
	v.SetDefault("store.use_ssl", false)
	v.SetDefault("store.region", "")
	v.SetDefault("store.part_size", 0) // 0 selects the backend default
	v.SetDefault("store.path", "./data")
	v.SetDefault("store.operation_timeout", 30)

	v.SetDefault("upload.max_size", 100<<20)
	v.SetDefault("upload.allowed_extensions", []string{})

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition", "Content-Length", "ETag", "Last-Modified"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.service_name", "filegate")

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
