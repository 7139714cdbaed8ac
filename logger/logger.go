package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// New builds the shared logger. Messages always go to stderr; when logDir is
// non-empty they are mirrored into reckless.log inside it. Verbose drops the
// level to Debug, which is also where captured subprocess output ends up.
func New(logDir string, verbose bool) (*log.Logger, error) {
	writers := []io.Writer{os.Stderr}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}
		logFile, err := os.OpenFile(filepath.Join(logDir, "reckless.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, logFile)
	}

	l := log.New(io.MultiWriter(writers...))
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l, nil
}
