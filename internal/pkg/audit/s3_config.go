package audit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/ConfDesk/internal/pkg/env"
)

// S3Config holds audit archive configuration
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	BufferSize      int
	UploadTimeout   time.Duration
	Enabled         bool
}

// LoadS3Config loads the archive configuration from environment variables
func LoadS3Config() (*S3Config, error) {
	bufferSize, err := strconv.Atoi(env.GetEnv("AUDIT_S3_BUFFER", "256"))
	if err != nil || bufferSize <= 0 {
		bufferSize = 256
	}
	config := &S3Config{
		AccessKeyID:     env.GetEnv("AUDIT_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("AUDIT_S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("AUDIT_S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("AUDIT_S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("AUDIT_S3_ENDPOINT_URL", ""),
		Prefix:          strings.Trim(env.GetEnv("AUDIT_S3_PREFIX", "payment-audit"), "/"),
		BufferSize:      bufferSize,
		UploadTimeout:   env.GetDuration("AUDIT_S3_UPLOAD_TIMEOUT", defaultUploadTimeout),
		Enabled:         env.GetEnv("AUDIT_S3_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("AUDIT_S3_ACCESS_KEY_ID is required when the audit archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("AUDIT_S3_SECRET_ACCESS_KEY is required when the audit archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("AUDIT_S3_BUCKET_NAME is required when the audit archive is enabled")
		}
	}

	return config, nil
}

// ObjectKey builds the archive key for an event.
// Format: prefix/YYYY/MM/DD/<registration>/<unix-nanos>-<type>.json
func (c *S3Config) ObjectKey(event Event) string {
	ts := event.Timestamp.UTC()
	registration := event.RegistrationID
	if registration == "" {
		registration = "_unknown"
	}
	key := fmt.Sprintf("%04d/%02d/%02d/%s/%d-%s.json",
		ts.Year(), int(ts.Month()), ts.Day(), registration, ts.UnixNano(), event.Type)
	if c.Prefix == "" {
		return key
	}
	return c.Prefix + "/" + key
}
