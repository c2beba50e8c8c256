package logging

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows per-replica and per-step details
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows everything, including every catalog row
	LogLevelDebug LogLevel = "debug"
)

type contextKey string

const runIDKey contextKey = "run_id"

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
	runID  string
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel  `mapstructure:"level" yaml:"level"`
	Output     io.Writer `mapstructure:"-" yaml:"-"`
	Format     string    `mapstructure:"format" yaml:"format"` // "text" or "json"
	ShowCaller bool      `mapstructure:"show_caller" yaml:"show_caller"`
	LogFile    string    `mapstructure:"file" yaml:"file"`
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	logger.SetOutput(output)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		formatter := &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		}
		if config.ShowCaller {
			formatter.CallerPrettyfier = func(f *runtime.Frame) (string, string) {
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			}
		}
		logger.SetFormatter(formatter)
	}
	logger.SetReportCaller(config.ShowCaller)
	logger.SetLevel(toLogrusLevel(config.Level))

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}
		logger.SetOutput(io.MultiWriter(output, file))
	}

	level := config.Level
	if level == "" {
		level = LogLevelNormal
	}

	return &Logger{
		logger: logger,
		level:  level,
		runID:  uuid.New().String(),
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelNormal, Format: "text"})
	return logger
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelQuiet, Output: io.Discard})
	return logger
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelQuiet:
		return logrus.ErrorLevel
	case LogLevelVerbose:
		return logrus.DebugLevel
	case LogLevelDebug:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// RunID returns the correlation id attached to every record of this run
func (l *Logger) RunID() string {
	return l.runID
}

func (l *Logger) entry() *logrus.Entry {
	return l.logger.WithField("run_id", l.runID)
}

// WithContext returns a logger entry carrying the run id found in ctx
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.entry().WithContext(ctx)
	if id := RunIDFromContext(ctx); id != "" {
		entry = entry.WithField("run_id", id)
	}
	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry().WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry().WithField(key, value)
}

// LogReplicaConnection logs a connection attempt to a replica
func (l *Logger) LogReplicaConnection(replica, host string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "replica_connection",
		"replica":   replica,
		"host":      host,
		"duration":  duration.String(),
		"success":   err == nil,
	}

	if err != nil {
		fields["error"] = err.Error()
		l.entry().WithFields(fields).Error("Replica connection failed")
		return
	}
	l.entry().WithFields(fields).Debug("Replica connection established")
}

// LogCatalogFetch logs one backup history query against one replica
func (l *Logger) LogCatalogFetch(replica, database string, rows int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "catalog_fetch",
		"replica":   replica,
		"database":  database,
		"rows":      rows,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.entry().WithFields(fields).Error("Backup history query failed")
		return
	}
	l.entry().WithFields(fields).Debug("Backup history fetched")
}

// LogRetry logs a retried operation
func (l *Logger) LogRetry(operation string, attempt int, delay time.Duration, err error) {
	l.entry().WithFields(logrus.Fields{
		"operation": operation,
		"attempt":   attempt,
		"delay":     delay.String(),
		"error":     err.Error(),
	}).Warn("Retrying after recoverable error")
}

// LogRecordFiltering logs how many catalog rows were discarded before resolution
func (l *Logger) LogRecordFiltering(database string, input, invalid, duplicates, sets int) {
	fields := logrus.Fields{
		"operation":  "record_filtering",
		"database":   database,
		"input":      input,
		"invalid":    invalid,
		"duplicates": duplicates,
		"sets":       sets,
	}

	if invalid > 0 {
		l.entry().WithFields(fields).Warn("Ignored backup history rows with unusable device names")
		return
	}
	l.entry().WithFields(fields).Debug("Backup history filtered")
}

// LogChainResolution logs the outcome of resolving a restore chain
func (l *Logger) LogChainResolution(database string, size int, lastLSN string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":  "chain_resolution",
		"database":   database,
		"chain_size": size,
		"duration":   duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.entry().WithFields(fields).Error("Restore chain resolution failed")
		return
	}
	fields["last_lsn"] = lastLSN
	l.entry().WithFields(fields).Info("Restore chain resolved")
}

// LogManifestStored logs a manifest written to storage
func (l *Logger) LogManifestStored(id, provider, location string, size int64, err error) {
	fields := logrus.Fields{
		"operation":   "manifest_store",
		"manifest_id": id,
		"provider":    provider,
		"location":    location,
		"size":        size,
	}

	if err != nil {
		fields["error"] = err.Error()
		l.entry().WithFields(fields).Error("Failed to store restore manifest")
		return
	}
	l.entry().WithFields(fields).Info("Restore manifest stored")
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.entry().Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry().Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.entry().Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry().Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.entry().Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry().Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.entry().Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry().Errorf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.logger.SetLevel(toLogrusLevel(level))
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet, LogLevelNormal, LogLevelVerbose, LogLevelDebug:
		return l.logger.IsLevelEnabled(toLogrusLevel(level))
	default:
		return false
	}
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.entry().WithFields(logFields).Debug("Operation started")

	return func(err error) {
		logFields["status"] = "completed"
		logFields["duration"] = time.Since(startTime).String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.entry().WithFields(logFields).Error("Operation failed")
			return
		}
		logFields["success"] = true
		l.entry().WithFields(logFields).Debug("Operation completed")
	}
}

// ContextWithRunID stores a run id in ctx
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run id from ctx
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// SanitizeDSN masks the password of a sqlserver:// connection string
func SanitizeDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
