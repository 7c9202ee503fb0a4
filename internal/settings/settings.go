// Package settings loads process configuration from inventory.yaml and
// INVENTORY_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. INVENTORY_STORAGE_DRIVER.
const EnvPrefix = "INVENTORY"

// Settings is the root configuration.
type Settings struct {
	Storage Storage `mapstructure:"storage"`
	Blob    Blob    `mapstructure:"blob"`
	Log     Log     `mapstructure:"log"`
	Feed    Feed    `mapstructure:"feed"`
}

// Storage selects the record store.
type Storage struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Blob selects the attachment store.
type Blob struct {
	Driver string `mapstructure:"driver"`
	FSRoot string `mapstructure:"fs_root"`
	S3     S3     `mapstructure:"s3"`
}

// S3 configures an S3 or MinIO bucket. Credentials come from the default AWS
// chain unless AccessKeyID is set.
type S3 struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Feed configures the Redis change feed. An empty RedisAddr disables it.
type Feed struct {
	RedisAddr string `mapstructure:"redis_addr"`
	Stream    string `mapstructure:"stream"`
	MaxLen    int64  `mapstructure:"max_len"`
}

var defaults = map[string]any{
	"storage.driver":            "sqlite",
	"storage.sqlite_path":       "inventory.db",
	"storage.postgres_dsn":      "",
	"blob.driver":               "fs",
	"blob.fs_root":              "./blobdata",
	"blob.s3.bucket":            "",
	"blob.s3.region":            "us-east-1",
	"blob.s3.endpoint":          "",
	"blob.s3.path_style":        false,
	"blob.s3.access_key_id":     "",
	"blob.s3.secret_access_key": "",
	"log.level":                 "info",
	"log.format":                "json",
	"feed.redis_addr":           "",
	"feed.stream":               "inventory:changes",
	"feed.max_len":              10000,
}

// Load reads configFile, or inventory.yaml from the working directory when
// configFile is empty. A missing default file is not an error.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("inventory")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects unknown drivers and incomplete backend settings.
func (s *Settings) Validate() error {
	switch s.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if s.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", s.Storage.Driver)
	}
	switch s.Blob.Driver {
	case "memory", "fs":
	case "s3":
		if s.Blob.S3.Bucket == "" {
			return errors.New("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob.driver %q", s.Blob.Driver)
	}
	switch s.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log.format %q", s.Log.Format)
	}
	return nil
}
