package database

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ReplicaConfig holds the connection parameters of one SQL Server replica
// whose msdb backup history is read.
type ReplicaConfig struct {
	Name                   string        `mapstructure:"name" yaml:"name"`
	Host                   string        `mapstructure:"host" yaml:"host"`
	Port                   int           `mapstructure:"port" yaml:"port"`
	Instance               string        `mapstructure:"instance" yaml:"instance,omitempty"`
	Username               string        `mapstructure:"username" yaml:"username,omitempty"`
	Password               string        `mapstructure:"password" yaml:"password,omitempty"`
	Timeout                time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Encrypt                string        `mapstructure:"encrypt" yaml:"encrypt,omitempty"`
	TrustServerCertificate bool          `mapstructure:"trust_server_certificate" yaml:"trust_server_certificate,omitempty"`
}

const (
	defaultPort    = 1433
	defaultTimeout = 30 * time.Second
	appName        = "restore-chain"
)

// SetDefaults fills in the port, timeout, encryption mode and name
func (rc *ReplicaConfig) SetDefaults() {
	if rc.Port == 0 && rc.Instance == "" {
		rc.Port = defaultPort
	}
	if rc.Timeout == 0 {
		rc.Timeout = defaultTimeout
	}
	if rc.Encrypt == "" {
		rc.Encrypt = "true"
	}
	if rc.Name == "" {
		rc.Name = rc.Host
		if rc.Instance != "" {
			rc.Name = rc.Host + `\` + rc.Instance
		}
	}
}

// Validate checks if the replica configuration has all required parameters.
// An empty username selects integrated authentication.
func (rc *ReplicaConfig) Validate() error {
	var errs []error

	if rc.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if rc.Instance == "" && (rc.Port <= 0 || rc.Port > 65535) {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}
	if rc.Password != "" && rc.Username == "" {
		errs = append(errs, errors.New("username is required when a password is set"))
	}
	switch rc.Encrypt {
	case "", "true", "false", "disable", "strict":
	default:
		errs = append(errs, fmt.Errorf("encrypt must be one of true, false, disable, strict (got %q)", rc.Encrypt))
	}
	if rc.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("replica %s configuration validation failed: %w", rc.Name, errors.Join(errs...))
	}
	return nil
}

// DSN returns the sqlserver:// connection URL for the replica's msdb database
func (rc *ReplicaConfig) DSN() string {
	query := url.Values{}
	query.Set("database", "msdb")
	query.Set("app name", appName)
	if rc.Timeout > 0 {
		query.Set("dial timeout", strconv.Itoa(int(rc.Timeout.Seconds())))
	}
	if rc.Encrypt != "" {
		query.Set("encrypt", rc.Encrypt)
	}
	if rc.TrustServerCertificate {
		query.Set("TrustServerCertificate", "true")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     rc.Host,
		RawQuery: query.Encode(),
	}
	if rc.Port > 0 {
		u.Host = fmt.Sprintf("%s:%d", rc.Host, rc.Port)
	}
	if rc.Instance != "" {
		u.Path = rc.Instance
	}
	if rc.Username != "" {
		u.User = url.UserPassword(rc.Username, rc.Password)
	}
	return u.String()
}
