// Package config loads the restore-chain configuration from a YAML file,
// RESTORE_CHAIN_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"restore-chain/internal/chain"
	"restore-chain/internal/database"
	"restore-chain/internal/display"
	apperrors "restore-chain/internal/errors"
	"restore-chain/internal/logging"
	"restore-chain/internal/manifest"
)

// Config is the complete application configuration
type Config struct {
	Database       string                   `mapstructure:"database" yaml:"database"`
	Replicas       []database.ReplicaConfig `mapstructure:"replicas" yaml:"replicas"`
	CatalogFile    string                   `mapstructure:"catalog_file" yaml:"catalog_file,omitempty"`
	Timeout        time.Duration            `mapstructure:"timeout" yaml:"timeout"`
	MaxConcurrency int                      `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	AllowPartial   bool                     `mapstructure:"allow_partial" yaml:"allow_partial"`
	FromCheckpoint bool                     `mapstructure:"from_checkpoint" yaml:"from_checkpoint"`

	Resolve  ResolveConfig         `mapstructure:"resolve" yaml:"resolve"`
	Retry    apperrors.RetryConfig `mapstructure:"retry" yaml:"retry"`
	Logging  logging.Config        `mapstructure:"logging" yaml:"logging"`
	Display  display.DisplayConfig `mapstructure:"display" yaml:"display"`
	Manifest manifest.Config       `mapstructure:"manifest" yaml:"manifest"`
}

// ResolveConfig holds the chain resolution options. LSNs are kept as
// strings; unquoted LSNs beyond the integer range are rejected by Load.
type ResolveConfig struct {
	Adjacency     string `mapstructure:"adjacency" yaml:"adjacency"`
	LowerBoundLSN string `mapstructure:"lower_bound_lsn" yaml:"lower_bound_lsn,omitempty"`
	AppliedLSN    string `mapstructure:"applied_lsn" yaml:"applied_lsn,omitempty"`
	DeviceRoot    string `mapstructure:"device_root" yaml:"device_root,omitempty"`
	SaveManifest  bool   `mapstructure:"save_manifest" yaml:"save_manifest"`
}

const defaultTimeout = 5 * time.Minute

// Options converts the settings into resolver options
func (rc ResolveConfig) Options() ([]chain.ResolveOption, error) {
	rule, err := chain.ParseAdjacencyRule(rc.Adjacency)
	if err != nil {
		return nil, err
	}
	opts := []chain.ResolveOption{chain.WithAdjacency(rule)}

	if rc.LowerBoundLSN != "" {
		lsn, err := chain.ParseLSN(rc.LowerBoundLSN)
		if err != nil {
			return nil, fmt.Errorf("invalid lower_bound_lsn: %w", err)
		}
		opts = append(opts, chain.WithLowerBound(lsn))
	}
	return opts, nil
}

// Applied returns the LSN already restored on the target, if configured
func (rc ResolveConfig) Applied() (chain.LSN, bool, error) {
	if rc.AppliedLSN == "" {
		return chain.LSN{}, false, nil
	}
	lsn, err := chain.ParseLSN(rc.AppliedLSN)
	if err != nil {
		return chain.LSN{}, false, fmt.Errorf("invalid applied_lsn: %w", err)
	}
	return lsn, true, nil
}

// Validate checks the adjacency rule and LSNs
func (rc ResolveConfig) Validate() error {
	if _, err := rc.Options(); err != nil {
		return err
	}
	if _, _, err := rc.Applied(); err != nil {
		return err
	}
	if rc.DeviceRoot != "" && !chain.IsValidDevicePath(chain.CombinePaths(rc.DeviceRoot, "device.bak")) {
		return fmt.Errorf("invalid device_root %q: must be a rooted path, UNC share or http(s) URL", rc.DeviceRoot)
	}
	return nil
}

// SetDefaults fills unset fields of every section
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Resolve.Adjacency == "" {
		c.Resolve.Adjacency = string(chain.AdjacencyExact)
	}
	c.Resolve.Adjacency = strings.ToLower(c.Resolve.Adjacency)

	defaults := apperrors.DefaultRetryConfig()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.MaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = defaults.BaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = defaults.MaxDelay
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = defaults.Multiplier
	}

	if c.Logging.Level == "" {
		c.Logging.Level = logging.LogLevelNormal
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	for i := range c.Replicas {
		c.Replicas[i].SetDefaults()
	}
	c.Display.SetDefaults()
	c.Manifest.SetDefaults()
}

// Validate validates every section. Whether a catalog source is present is
// checked separately by ValidateSources since not every command needs one.
func (c *Config) Validate() error {
	var errs []error

	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, errors.New("max_concurrency must not be negative"))
	}

	names := make(map[string]bool)
	for i := range c.Replicas {
		if err := c.Replicas[i].Validate(); err != nil {
			errs = append(errs, err)
		}
		name := strings.ToLower(c.Replicas[i].Name)
		if names[name] {
			errs = append(errs, fmt.Errorf("duplicate replica name %s", c.Replicas[i].Name))
		}
		names[name] = true
	}

	if err := c.Resolve.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("resolve: %w", err))
	}
	if err := validateRetry(c.Retry); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Display.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Manifest.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("manifest: %w", err))
	}

	return errors.Join(errs...)
}

// ValidateSources checks that a database and at least one catalog source
// are configured
func (c *Config) ValidateSources() error {
	if c.Database == "" {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation, "database is required", nil).
			WithUserMessage("Specify the database with --database or the database config key")
	}
	if len(c.Replicas) == 0 && c.CatalogFile == "" {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation, "no catalog source configured", nil).
			WithUserMessage("Configure replicas in the config file or pass --catalog-file")
	}
	return nil
}

// UseCatalogFile reports whether the exported catalog file replaces the
// replicas as the source of backup history
func (c *Config) UseCatalogFile() bool {
	return c.CatalogFile != ""
}

func validateRetry(rc apperrors.RetryConfig) error {
	var errs []error
	if rc.MaxAttempts < 1 {
		errs = append(errs, errors.New("max_attempts must be at least 1"))
	}
	if rc.BaseDelay < 0 || rc.MaxDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if rc.MaxDelay > 0 && rc.MaxDelay < rc.BaseDelay {
		errs = append(errs, errors.New("max_delay must not be smaller than base_delay"))
	}
	if rc.Multiplier < 1 {
		errs = append(errs, errors.New("multiplier must be at least 1"))
	}
	return errors.Join(errs...)
}

func validateLogging(lc logging.Config) error {
	switch lc.Level {
	case logging.LogLevelQuiet, logging.LogLevelNormal, logging.LogLevelVerbose, logging.LogLevelDebug:
	default:
		return fmt.Errorf("invalid level '%s', must be one of: quiet, normal, verbose, debug", lc.Level)
	}
	switch lc.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format '%s', must be text or json", lc.Format)
	}
	return nil
}
