package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup returns a zerolog.Logger writing to w at level. In DEV the output is the human readable
// console format, otherwise JSON. Unknown levels fall back to info.
func Setup(w io.Writer, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(env, "DEV") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// SetupDefault installs the logger as the global zerolog logger. A nil w means os.Stderr.
func SetupDefault(w io.Writer, level, env string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := Setup(w, level, env)
	log.Logger = l
	return l
}
