package reportarchive

import (
	"errors"
	"fmt"
	"time"

	"github.com/accessradar/accessradar/internal/pkg/env"
)

// Config holds report archive storage configuration.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads the archive configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the report archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the report archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the report archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if archival is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates the archive key for one audit report.
// Format: reports/YYYY/MM/UUID.json
func (c *Config) ObjectKey(auditUUID string, at time.Time) string {
	return fmt.Sprintf("reports/%04d/%02d/%s.json", at.Year(), int(at.Month()), auditUUID)
}
