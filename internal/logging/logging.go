// Package logging configures structured logging for the crawler.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the logger type used across the module.
type Logger = *logrus.Logger

// Fields represents structured logging fields.
type Fields = logrus.Fields

// New creates a JSON-formatted logger. The level is read from the
// MIRROR_LOG_LEVEL environment variable and defaults to info.
func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(levelFromEnv())
	return logger
}

// NewWithComponent creates a logger whose entries carry a component field.
func NewWithComponent(component string) *logrus.Logger {
	logger := New()
	logger.AddHook(&componentHook{component: component})
	return logger
}

type componentHook struct {
	component string
}

func (h *componentHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *componentHook) Fire(entry *logrus.Entry) error {
	entry.Data["component"] = h.component
	return nil
}

func levelFromEnv() logrus.Level {
	switch strings.ToLower(os.Getenv("MIRROR_LOG_LEVEL")) {
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
