// Package logging builds the process logger and bridges AWS SDK logging onto it.
package logging

import (
	"fmt"
	"io"

	"github.com/aws/smithy-go/logging"
	"github.com/sirupsen/logrus"

	"github.com/13rac1/s3path/internal/types"
)

// New creates a logger writing to out with the configured level and format.
func New(cfg types.LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// SDKLogger adapts a logrus logger to the smithy logging interface used by the
// AWS SDK. SDK warnings stay warnings; everything else is debug.
type SDKLogger struct {
	Log logrus.FieldLogger
}

// Logf implements logging.Logger.
func (l SDKLogger) Logf(classification logging.Classification, format string, v ...interface{}) {
	entry := l.Log.WithField("source", "aws-sdk")
	if classification == logging.Warn {
		entry.Warnf(format, v...)
		return
	}
	entry.Debugf(format, v...)
}
