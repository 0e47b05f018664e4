// Package config holds the settings that bind a filesystem to one bucket.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/s3fs-fuse/s3storage/internal/credentials"
	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// Provider identifies the object-store backend.
type Provider string

const (
	ProviderS3       Provider = "s3"
	ProviderMinIO    Provider = "minio"
	ProviderPostgres Provider = "postgres"
	ProviderMongoDB  Provider = "mongodb"
)

// Property keys recognised by FromProperties.
const (
	PropAccessKey = "linkis.storage.s3.access.key"
	PropSecretKey = "linkis.storage.s3.secret.key"
	PropEndpoint  = "linkis.storage.s3.endpoint"
	PropRegion    = "linkis.storage.s3.region"
	PropBucket    = "linkis.storage.s3.bucket"
	PropLabel     = "linkis.storage.s3.label"
	PropProvider  = "linkis.storage.s3.provider"
	PropMaxKeys   = "linkis.storage.s3.max.keys"
)

// Config holds everything needed to bind a filesystem to a bucket.
type Config struct {
	// Provider selects the backend. Empty means ProviderS3.
	Provider Provider `yaml:"provider"`

	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`

	// EndPoint is the store URL, e.g. "http://localhost:4566". The postgres
	// and mongodb providers take their connection URI here.
	EndPoint string `yaml:"endPoint"`

	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`

	// Label is an optional tag carried for the lifetime of the filesystem.
	Label string `yaml:"label"`

	// MaxKeys is the page size of a single listing request.
	MaxKeys int32 `yaml:"maxKeys"`
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "failed to read config file", err, path)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "failed to parse config file", err, path)
	}
	return cfg, nil
}

// FromProperties builds a Config from a flat property map keyed by the
// Prop* constants.
func FromProperties(props map[string]string) (*Config, error) {
	cfg := &Config{
		Provider:  Provider(props[PropProvider]),
		AccessKey: props[PropAccessKey],
		SecretKey: props[PropSecretKey],
		EndPoint:  props[PropEndpoint],
		Bucket:    props[PropBucket],
		Region:    props[PropRegion],
		Label:     props[PropLabel],
	}
	if v, ok := props[PropMaxKeys]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, "invalid max keys", err, PropMaxKeys)
		}
		cfg.MaxKeys = int32(n)
	}
	return cfg, nil
}

// ApplyCredentials fills AccessKey and SecretKey from creds where they are unset.
func (c *Config) ApplyCredentials(creds *credentials.Credentials) {
	if creds == nil {
		return
	}
	if c.AccessKey == "" {
		c.AccessKey = creds.AccessKeyID
	}
	if c.SecretKey == "" {
		c.SecretKey = creds.SecretAccessKey
	}
}

// Credentials returns the key pair as a credentials value.
func (c *Config) Credentials() *credentials.Credentials {
	return &credentials.Credentials{
		AccessKeyID:     c.AccessKey,
		SecretAccessKey: c.SecretKey,
	}
}

// Validate fills defaults and checks that every required setting is present.
// The returned error names all missing settings at once.
func (c *Config) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderS3
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = types.DefaultMaxKeys
	}

	switch c.Provider {
	case ProviderS3, ProviderMinIO, ProviderPostgres, ProviderMongoDB:
	default:
		return errs.New(errs.KindConfiguration, fmt.Sprintf("unknown provider %q", c.Provider))
	}

	var missing []string
	for _, field := range []struct {
		name, value string
	}{
		{"accessKey", c.AccessKey},
		{"secretKey", c.SecretKey},
		{"endPoint", c.EndPoint},
		{"bucket", c.Bucket},
		{"region", c.Region},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return errs.New(errs.KindConfiguration, "missing required settings: "+strings.Join(missing, ", "))
	}
	return nil
}
