package logging

import (
	"os"
	"strings"

	"github.com/op/go-logging"
)

var format = logging.MustStringFormatter(
	`%{color}%{time:2006-01-02T15:04:05.000Z07:00} %{level:.4s} %{module}%{color:reset} %{message}`,
)

// Setup routes all loggers to stderr at the given level name (DEBUG, INFO,
// WARNING, ERROR). Unknown names fall back to INFO.
func Setup(level string) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, format))
	leveled.SetLevel(ParseLevel(level), "")
	logging.SetBackend(leveled)
}

// ParseLevel converts a level name, defaulting to INFO.
func ParseLevel(name string) logging.Level {
	lvl, err := logging.LogLevel(strings.ToUpper(strings.TrimSpace(name)))
	if err != nil {
		return logging.INFO
	}
	return lvl
}

// NewLogger returns a named logger
func NewLogger(name string) *logging.Logger {
	return logging.MustGetLogger(name)
}
