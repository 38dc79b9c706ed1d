// Package testlog configures logging for tests: debug level, no
// timestamps, no color.
package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/openg2/g2ctl/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Debug().Str("test", t.Name()).Msg("start")
}
