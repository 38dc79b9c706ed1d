package observability

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openg2/g2ctl/internal/logging"
)

// InitLogger returns the process-wide logger tagged with the application
// name. Output format, level, and env overrides come from the logging
// package; the tagged logger is installed as the zerolog global so
// package-level log calls carry the same context.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().
		Str("app", app).
		Int("pid", os.Getpid()).
		Logger()
	log.Logger = logger
	return logger
}
