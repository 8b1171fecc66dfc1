package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gtranslate-go/internal/config"
	log "github.com/sirupsen/logrus"
)

var (
	logMux        sync.Mutex
	logFileHandle *os.File
)

// Setup configures the global logrus logger using runtime configuration.
// It is idempotent and can be called multiple times; the most recent call wins.
func Setup(cfg *config.Config) error {
	logMux.Lock()
	defer logMux.Unlock()

	var formatter log.Formatter = &log.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	if cfg != nil && cfg.Debug {
		formatter = &log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		}
	}
	log.SetFormatter(formatter)
	log.SetLevel(ParseLevel(levelFrom(cfg)))

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logFileHandle != nil {
		_ = logFileHandle.Close()
		logFileHandle = nil
	}

	if cfg != nil && cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFileHandle = file
		writers = append(writers, file)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

func levelFrom(cfg *config.Config) string {
	if cfg == nil {
		return "info"
	}
	if cfg.Debug {
		return "debug"
	}
	return cfg.LogLevel
}

// ParseLevel maps the LOG_LEVEL option onto a logrus level. "none" maps to
// PanicLevel, which silences regular output.
func ParseLevel(level string) log.Level {
	switch level {
	case "none":
		return log.PanicLevel
	case "error":
		return log.ErrorLevel
	case "warn":
		return log.WarnLevel
	case "debug":
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}

// SetLevel adjusts the level at runtime (config hot reload).
func SetLevel(level string) {
	log.SetLevel(ParseLevel(level))
}
