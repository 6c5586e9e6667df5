package resourcestore

import (
	"errors"
	"fmt"
	"time"

	"github.com/LeVietHung/CNCademy/internal/pkg/env"
)

// Config holds object storage configuration for lesson resources
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// DefaultPresignExpiry is how long a resource download link stays valid.
const DefaultPresignExpiry = 15 * time.Minute

// LoadConfig loads object storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("RESOURCE_STORE_ENABLED", "false") == "true",
	}

	// Validate required fields if the resource store is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the resource store is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the resource store is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the resource store is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the resource store is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates a standardized object key for a lesson resource
func (c *Config) GetObjectKey(resourceUUID, fileExtension string, year, month int) string {
	// Format: resources/YYYY/MM/UUID.ext
	return fmt.Sprintf("resources/%04d/%02d/%s%s", year, month, resourceUUID, fileExtension)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured (no automatic prefixing)
func (c *Config) GetBucketName() string {
	return c.BucketName
}
