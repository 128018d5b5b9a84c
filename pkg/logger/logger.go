// Package logger configures the global zerolog logger of the commands.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var once sync.Once

// Init sets the global level and a console writer on stderr. Only the first
// call has an effect.
func Init(appName, level string) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(level))
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "02-01-2006 15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-6s", i))
			},
		}).With().Timestamp().Str("app", appName).Logger()
	})
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		log.Warn().Str("level", level).Msg("unknown log level, defaulting to info")
		return zerolog.InfoLevel
	}
	return l
}
