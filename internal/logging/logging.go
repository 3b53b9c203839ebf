// Package logging wires the solver's structured logger the way
// evmd/cmd/evmd/cmd/root.go wires its node logger: cosmossdk.io/log's
// zerolog-backed Logger, with key-value args at each call site
// ("msg", "key", val, ...).
package logging

import (
	"os"
	"strings"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
)

// New builds the process-wide logger from LOG_LEVEL and LOG_FORMAT.
func New(level, format string) log.Logger {
	opts := []log.Option{log.LevelOption(parseLevel(level))}
	if strings.EqualFold(format, "json") {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(os.Stderr, opts...)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
