package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Package-level leveled logger shared by the whole client.
// Wraps zerolog and exposes Init(level) plus printf-style helpers.

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		log = log.Level(zerolog.DebugLevel)
	case "warn", "warning":
		log = log.Level(zerolog.WarnLevel)
	case "error":
		log = log.Level(zerolog.ErrorLevel)
	case "fatal":
		log = log.Level(zerolog.FatalLevel)
	default:
		log = log.Level(zerolog.InfoLevel)
	}
}

// SetOutput redirects log output. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Output(w)
}

func get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debugf(format string, v ...interface{}) { l := get(); l.Debug().Msgf(format, v...) }
func Infof(format string, v ...interface{})  { l := get(); l.Info().Msgf(format, v...) }
func Warnf(format string, v ...interface{})  { l := get(); l.Warn().Msgf(format, v...) }
func Errorf(format string, v ...interface{}) { l := get(); l.Error().Msgf(format, v...) }
func Fatalf(format string, v ...interface{}) { l := get(); l.Fatal().Msgf(format, v...) }

// LevelString returns the current level as text.
func LevelString() string {
	return get().GetLevel().String()
}
