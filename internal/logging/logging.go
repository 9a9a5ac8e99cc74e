package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process: human-readable console output,
// debug level in dev.
func Setup(env string) zerolog.Logger {
	return SetupWithWriter(env, os.Stdout)
}

func SetupWithWriter(env string, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if env == "dev" || env == "development" {
		level = zerolog.DebugLevel
	}

	var w io.Writer = out
	if env != "prod" && env != "production" {
		w = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(w).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger
}
