package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. RESTORE_CHAIN_DATABASE
	EnvPrefix = "RESTORE_CHAIN"
	// ConfigName is the config file searched for when none is given
	ConfigName = ".restore-chain"
)

// Loader handles loading configuration from various sources
type Loader struct {
	viper *viper.Viper
}

// NewLoader creates a loader with every known key registered
func NewLoader() *Loader {
	v := viper.New()
	registerDefaults(v)
	return &Loader{viper: v}
}

// BindFlags binds command flags to config keys. bindings maps a flag name to
// its key, e.g. "applied-lsn" to "resolve.applied_lsn".
func (l *Loader) BindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for name, key := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if flag == nil {
			flag = cmd.InheritedFlags().Lookup(name)
		}
		if flag == nil {
			return fmt.Errorf("flag --%s is not defined on %s", name, cmd.Name())
		}
		if err := l.viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Set overrides a key, taking precedence over every other source
func (l *Loader) Set(key string, value interface{}) {
	l.viper.Set(key, value)
}

// Load reads the config file, environment variables and bound flags, then
// applies defaults and validates the result. A missing default config file
// is not an error; a missing explicit one is.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		l.viper.SetConfigFile(configFile)
	} else {
		l.viper.SetConfigName(ConfigName)
		l.viper.SetConfigType("yaml")
		l.viper.AddConfigPath(".")
		l.viper.AddConfigPath("$HOME/.config/restore-chain")
		l.viper.AddConfigPath("$HOME")
	}

	l.viper.SetEnvPrefix(EnvPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := l.checkLSNKeys(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	var config Config
	if err := l.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// lsnKeys hold LSNs, which must be given as strings or integers
var lsnKeys = []string{"resolve.lower_bound_lsn", "resolve.applied_lsn"}

// checkLSNKeys rejects LSNs the YAML parser read as floats. A 25 digit
// unquoted LSN becomes a float64 and would silently lose its low digits.
func (l *Loader) checkLSNKeys() error {
	for _, key := range lsnKeys {
		switch value := l.viper.Get(key).(type) {
		case float32, float64:
			return fmt.Errorf("%s: %v is not an exact LSN, quote it in the config file", key[strings.LastIndex(key, ".")+1:], value)
		}
	}
	return nil
}

// ConfigFileUsed returns the path of the config file that was read
func (l *Loader) ConfigFileUsed() string {
	return l.viper.ConfigFileUsed()
}

// registerDefaults declares every scalar key so that AutomaticEnv can
// override it; viper only consults the environment for keys it knows.
func registerDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"database":        "",
		"catalog_file":    "",
		"timeout":         defaultTimeout,
		"max_concurrency": 0,
		"allow_partial":   false,
		"from_checkpoint": false,

		"resolve.adjacency":       "exact",
		"resolve.lower_bound_lsn": "",
		"resolve.applied_lsn":     "",
		"resolve.device_root":     "",
		"resolve.save_manifest":   false,

		"retry.max_attempts": 3,
		"retry.base_delay":   "1s",
		"retry.max_delay":    "30s",
		"retry.multiplier":   2.0,

		"logging.level":       "normal",
		"logging.format":      "text",
		"logging.show_caller": false,
		"logging.file":        "",

		"display.color_enabled":   true,
		"display.theme":           "dark",
		"display.output_format":   "table",
		"display.quiet":           false,
		"display.show_devices":    false,
		"display.table_style":     "default",
		"display.max_table_width": 160,

		"manifest.format":                       "json",
		"manifest.compression.algorithm":        "none",
		"manifest.compression.level":            0,
		"manifest.encryption.enabled":           false,
		"manifest.encryption.key_source":        "env",
		"manifest.encryption.key_path":          "",
		"manifest.encryption.key_env_var":       "RESTORE_CHAIN_MANIFEST_KEY",
		"manifest.encryption.passphrase":        "",
		"manifest.storage.provider":             "local",
		"manifest.storage.prefix":               "manifests/",
		"manifest.storage.local.base_path":      "./manifests",
		"manifest.storage.s3.bucket":            "",
		"manifest.storage.s3.region":            "",
		"manifest.storage.s3.access_key":        "",
		"manifest.storage.s3.secret_key":        "",
		"manifest.storage.s3.endpoint":          "",
		"manifest.storage.s3.force_path_style":  false,
		"manifest.storage.azure.account_name":   "",
		"manifest.storage.azure.account_key":    "",
		"manifest.storage.azure.container_name": "",
		"manifest.storage.gcs.bucket":           "",
		"manifest.storage.gcs.credentials_path": "",
		"manifest.storage.gcs.project_id":       "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
