package shared

import (
	"github.com/charmbracelet/log"
	"os"
	"strings"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_logger.go -package mocks fedipress/shared ILogger

type ILogger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Debugf(format string, args ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Infof(format string, args ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Warnf(format string, args ...interface{})
	Error(msg interface{}, keyvals ...interface{})
	Errorf(format string, args ...interface{})
	Printf(format string, args ...interface{})
}

type logger struct {
	charm *log.Logger
}

func NewLogger(cfg *Config) ILogger {

	w := os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatal("Failed to open log file", "file", cfg.LogFile, "error", err)
		}
		w = f
	}

	charm := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000",
	})
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		charm.SetLevel(log.DebugLevel)
	case "warn":
		charm.SetLevel(log.WarnLevel)
	case "error":
		charm.SetLevel(log.ErrorLevel)
	default:
		charm.SetLevel(log.InfoLevel)
	}

	return &logger{charm: charm}
}

func (l *logger) Debug(msg interface{}, keyvals ...interface{}) {
	l.charm.Debug(msg, keyvals...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.charm.Debugf(format, args...)
}

func (l *logger) Info(msg interface{}, keyvals ...interface{}) {
	l.charm.Info(msg, keyvals...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.charm.Infof(format, args...)
}

func (l *logger) Warn(msg interface{}, keyvals ...interface{}) {
	l.charm.Warn(msg, keyvals...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.charm.Warnf(format, args...)
}

func (l *logger) Error(msg interface{}, keyvals ...interface{}) {
	l.charm.Error(msg, keyvals...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.charm.Errorf(format, args...)
}

func (l *logger) Printf(format string, args ...interface{}) {
	l.charm.Printf(format, args...)
}
