package log

import (
	"fmt"
	stdlog "log"
	"strings"
	"time"
)

// Config declaratively describes a logger.
type Config struct {
	// Level is one of debug|info|warn|error. Empty means info.
	Level string `json:"level"`
	// Format is one of text|json. Empty means text.
	Format string `json:"format"`
}

// ApplyConfig builds a Logger from a declarative Config.
func ApplyConfig(cfg *Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}
	return NewLogger(WithLevel(level), WithFormatter(formatter)), nil
}

// stdWriter adapts a Logger to io.Writer for the stdlib log package.
type stdWriter struct {
	logger Logger
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	w.logger.Info(msg, Str("source", "stdlog"))
	return len(p), nil
}

// RedirectStdLog routes standard library log output (used by Pebble, among
// others) through the given Logger.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdWriter{logger: logger})
}

// Since reports elapsed time as a duration Field; convenience for latency
// logging at call sites.
func Since(key string, start time.Time) Field {
	return Dur(key, time.Since(start))
}
