package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Format is the serialization of a manifest document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ProviderType names a storage backend
type ProviderType string

const (
	ProviderLocal ProviderType = "local"
	ProviderS3    ProviderType = "s3"
	ProviderAzure ProviderType = "azure"
	ProviderGCS   ProviderType = "gcs"
)

// Config groups the manifest settings of the application config
type Config struct {
	Format      Format            `mapstructure:"format" yaml:"format"`
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`
	Encryption  EncryptionConfig  `mapstructure:"encryption" yaml:"encryption"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
}

// CompressionConfig selects the compression applied to stored manifests
type CompressionConfig struct {
	Algorithm CompressionType `mapstructure:"algorithm" yaml:"algorithm"`
	Level     int             `mapstructure:"level" yaml:"level"`
}

// EncryptionConfig defines how stored manifests are encrypted
type EncryptionConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	KeySource  string `mapstructure:"key_source" yaml:"key_source"` // "env", "file", "passphrase"
	KeyPath    string `mapstructure:"key_path" yaml:"key_path"`
	KeyEnvVar  string `mapstructure:"key_env_var" yaml:"key_env_var"`
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase"`
}

// StorageConfig selects and configures the manifest store
type StorageConfig struct {
	Provider ProviderType `mapstructure:"provider" yaml:"provider"`
	Prefix   string       `mapstructure:"prefix" yaml:"prefix"`
	Local    LocalConfig  `mapstructure:"local" yaml:"local"`
	S3       S3Config     `mapstructure:"s3" yaml:"s3"`
	Azure    AzureConfig  `mapstructure:"azure" yaml:"azure"`
	GCS      GCSConfig    `mapstructure:"gcs" yaml:"gcs"`
}

// LocalConfig for local file system storage
type LocalConfig struct {
	BasePath    string      `mapstructure:"base_path" yaml:"base_path"`
	Permissions os.FileMode `mapstructure:"permissions" yaml:"permissions"`
}

// S3Config for Amazon S3 or an S3 compatible endpoint
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey      string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
}

// DefaultConfig returns manifests stored as uncompressed JSON under ./manifests
func DefaultConfig() Config {
	c := Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields
func (c *Config) SetDefaults() {
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Compression.Algorithm == "" {
		c.Compression.Algorithm = CompressionNone
	}
	if c.Encryption.KeySource == "" {
		c.Encryption.KeySource = "env"
	}
	if c.Encryption.KeyEnvVar == "" {
		c.Encryption.KeyEnvVar = "RESTORE_CHAIN_MANIFEST_KEY"
	}
	if c.Storage.Provider == "" {
		c.Storage.Provider = ProviderLocal
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = "manifests/"
	}
	if c.Storage.Local.BasePath == "" {
		c.Storage.Local.BasePath = "./manifests"
	}
	if c.Storage.Local.Permissions == 0 {
		c.Storage.Local.Permissions = 0755
	}
}

// Validate validates the manifest configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.Format {
	case FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("unsupported manifest format: %s", c.Format))
	}
	if _, err := ParseCompressionType(string(c.Compression.Algorithm)); err != nil {
		errs = append(errs, err)
	}
	if err := c.Encryption.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate validates the encryption configuration
func (c *EncryptionConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.KeySource {
	case "env":
		if c.KeyEnvVar == "" {
			return errors.New("key_env_var is required when key_source is env")
		}
	case "file":
		if c.KeyPath == "" {
			return errors.New("key_path is required when key_source is file")
		}
	case "passphrase":
		if c.Passphrase == "" {
			return errors.New("passphrase is required when key_source is passphrase")
		}
	default:
		return fmt.Errorf("unsupported key source: %s", c.KeySource)
	}
	return nil
}

// Validate validates the settings of the selected provider only
func (c *StorageConfig) Validate() error {
	switch ProviderType(strings.ToLower(string(c.Provider))) {
	case ProviderLocal:
		if c.Local.BasePath == "" {
			return errors.New("local storage base_path is required")
		}
	case ProviderS3:
		if c.S3.Bucket == "" {
			return errors.New("S3 bucket is required")
		}
		if c.S3.Region == "" && c.S3.Endpoint == "" {
			return errors.New("S3 region is required")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			return errors.New("S3 access_key and secret_key must be set together")
		}
	case ProviderAzure:
		if c.Azure.AccountName == "" || c.Azure.AccountKey == "" {
			return errors.New("Azure account_name and account_key are required")
		}
		if c.Azure.ContainerName == "" {
			return errors.New("Azure container_name is required")
		}
	case ProviderGCS:
		if c.GCS.Bucket == "" {
			return errors.New("GCS bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.Provider)
	}
	return nil
}
