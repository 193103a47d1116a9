package httptransport

import (
	"log"
	"strings"

	"github.com/rs/zerolog"
)

type zerologWriter struct {
	logger zerolog.Logger
}

func (w zerologWriter) Write(p []byte) (int, error) {
	w.logger.Warn().Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}

// newStdLogger adapts logger for net/http's ErrorLog.
func newStdLogger(logger zerolog.Logger) *log.Logger {
	return log.New(zerologWriter{logger: logger}, "", 0)
}
