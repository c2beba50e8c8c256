package database

import (
	"context"
	"database/sql"
	"time"

	"restore-chain/internal/errors"
	"restore-chain/internal/logging"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
)

const driverName = "sqlserver"

// DatabaseService defines the interface for replica connection handling
type DatabaseService interface {
	Connect(ctx context.Context, config ReplicaConfig) (*sql.DB, error)
	TestConnection(ctx context.Context, db *sql.DB) error
	ServerName(ctx context.Context, db *sql.DB) (string, error)
	Close(db *sql.DB) error
}

// OpenFunc opens a database handle; sql.Open in production
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Service implements the DatabaseService interface
type Service struct {
	connectionTimeout time.Duration
	logger            *logging.Logger
	retryHandler      *errors.RetryHandler
	open              OpenFunc
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRetry sets the retry policy used when connecting
func WithRetry(config errors.RetryConfig) ServiceOption {
	return func(s *Service) {
		s.retryHandler = errors.NewRetryHandler(config)
	}
}

// WithConnectionTimeout bounds each connection attempt including retries
func WithConnectionTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.connectionTimeout = timeout
	}
}

// WithOpenFunc replaces sql.Open, mainly for tests
func WithOpenFunc(open OpenFunc) ServiceOption {
	return func(s *Service) {
		s.open = open
	}
}

// NewService creates a new database service
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		connectionTimeout: 30 * time.Second,
		logger:            logging.NewDefaultLogger(),
		retryHandler:      errors.NewDefaultRetryHandler(),
		open:              sql.Open,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retryHandler.OnRetry(func(attempt int, delay time.Duration, err *errors.AppError) {
		s.logger.LogRetry("replica_connection", attempt, delay, err)
	})
	return s
}

// Connect opens and pings a connection to the replica's msdb database
func (s *Service) Connect(ctx context.Context, config ReplicaConfig) (*sql.DB, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "invalid replica configuration", err).
			WithContext("replica", config.Name)
	}

	startTime := time.Now()
	s.logger.WithFields(map[string]interface{}{
		"replica": config.Name,
		"dsn":     logging.SanitizeDSN(config.DSN()),
	}).Debug("Connecting to replica")

	ctx, cancel := errors.CreateContextWithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	var db *sql.DB
	err := s.retryHandler.Retry(ctx, func() error {
		var openErr error
		db, openErr = s.open(driverName, config.DSN())
		if openErr != nil {
			return errors.WrapError(openErr, "failed to open replica connection")
		}

		// catalog reads are short and serialized per replica
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if pingErr := s.TestConnection(ctx, db); pingErr != nil {
			db.Close()
			return pingErr
		}
		return nil
	})

	s.logger.LogReplicaConnection(config.Name, config.Host, time.Since(startTime), err)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			appErr.WithContext("replica", config.Name)
		}
		return nil, err
	}
	return db, nil
}

// TestConnection verifies that the connection is working
func (s *Service) TestConnection(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	if err := db.PingContext(ctx); err != nil {
		return errors.WrapError(err, "failed to ping replica")
	}
	return nil
}

// ServerName returns @@SERVERNAME of the connected instance
func (s *Service) ServerName(ctx context.Context, db *sql.DB) (string, error) {
	if db == nil {
		return "", errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	var name sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT @@SERVERNAME").Scan(&name); err != nil {
		return "", errors.WrapError(err, "failed to read server name")
	}
	return name.String, nil
}

// Close closes the connection
func (s *Service) Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		s.logger.WithField("error", err.Error()).Error("Failed to close replica connection")
		return errors.WrapError(err, "failed to close replica connection")
	}
	return nil
}
