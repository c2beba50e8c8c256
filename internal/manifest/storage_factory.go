package manifest

import (
	"context"
	"fmt"
	"strings"

	"restore-chain/internal/errors"
	"restore-chain/internal/logging"
)

// NewBackend creates the backend selected by config.Provider
func NewBackend(ctx context.Context, config StorageConfig) (Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "invalid storage configuration", err)
	}

	var (
		backend Backend
		err     error
	)
	switch ProviderType(strings.ToLower(string(config.Provider))) {
	case ProviderLocal:
		backend, err = NewLocalBackend(config.Local)
	case ProviderS3:
		backend, err = NewS3Backend(config.S3)
	case ProviderAzure:
		backend, err = NewAzureBackend(config.Azure)
	case ProviderGCS:
		backend, err = NewGCSBackend(ctx, config.GCS)
	default:
		return nil, errors.NewAppError(errors.ErrorTypeValidation, fmt.Sprintf("unsupported storage provider: %s", config.Provider), nil)
	}
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeStorage, "failed to initialize manifest storage", err).
			WithContext("provider", string(config.Provider))
	}
	return backend, nil
}

// NewStore builds the codec and backend described by config
func NewStore(ctx context.Context, config Config, logger *logging.Logger) (*ObjectStore, error) {
	config.SetDefaults()

	codec, err := NewCodec(config)
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(ctx, config.Storage)
	if err != nil {
		return nil, err
	}

	return NewObjectStore(backend, codec, config.Storage.Prefix, logger), nil
}

// SupportedProviders lists the storage providers
func SupportedProviders() []ProviderType {
	return []ProviderType{ProviderLocal, ProviderS3, ProviderAzure, ProviderGCS}
}
