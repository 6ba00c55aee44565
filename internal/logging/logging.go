// Package logging configures the application logger. Because the terminal
// is owned by the UI, logs go to a file under the user cache directory.
package logging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dharper/prview/internal/domain"
)

// envLevel is the environment variable selecting the log level
// (trace, debug, info, warn, error). Unset or invalid means info.
const envLevel = "PRVIEW_LOG"

// Setup opens <user-cache>/prview/prview.log and returns a logger writing
// to it. The caller owns the returned close function.
func Setup() (zerolog.Logger, func(), error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return zerolog.Nop(), func() {}, domain.ErrConfig("cannot locate user cache directory", err)
	}
	dir := filepath.Join(base, "prview")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), func() {}, domain.ErrTransientIO("failed to create log directory", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "prview.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), func() {}, domain.ErrTransientIO("failed to open log file", err)
	}

	log := zerolog.New(f).Level(levelFromEnv()).With().Timestamp().Logger()
	return log, func() { f.Close() }, nil
}

func levelFromEnv() zerolog.Level {
	raw := os.Getenv(envLevel)
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
