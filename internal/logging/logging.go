// Package logging provides per-component logrus loggers.
package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
	level     = levelFromEnv()
)

func levelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(os.Getenv("MAPVIEW_LOG_LEVEL"))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger returns the logger for a component, creating it on first use.
// MAPVIEW_LOG_FORMAT=json switches to JSON output.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, ok := loggers[component]; ok {
		return logger
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	if os.Getenv("MAPVIEW_LOG_FORMAT") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// SetLevel changes the level of every existing and future logger.
func SetLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	level = lvl
	for _, entry := range loggers {
		entry.Logger.SetLevel(lvl)
	}
	return nil
}
