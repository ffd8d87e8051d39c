package s3export

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarekWeber/RevRescue/internal/pkg/env"
)

// Config holds the ledger export S3 configuration.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads the export configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("LEDGER_EXPORT_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when ledger export is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when ledger export is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when ledger export is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the ledger export is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates the object key for one daily export.
func (c *Config) GetObjectKey(day time.Time) string {
	return fmt.Sprintf("ledger/%04d/%02d/recovered-%s.csv", day.Year(), int(day.Month()), day.Format("2006-01-02"))
}
