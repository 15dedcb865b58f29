package utils

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger     *logrus.Logger
	loggerOnce sync.Once
)

// GetLogger returns the shared application logger, initializing it on first
// use from the LOG_LEVEL and LOG_FORMAT environment variables.
func GetLogger() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stdout)
		logger.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))

		if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
			logger.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
	})
	return logger
}

// LogWithRequestID returns a log entry tagged with the given request ID so
// all lines of one run can be correlated.
func LogWithRequestID(requestID string) *logrus.Entry {
	return GetLogger().WithField("request_id", requestID)
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
