package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// LogFile is the name of the daemon log file inside the log directory.
const LogFile = "stackdashd.log"

// New returns a slog.Logger backed by a charmbracelet/log handler at the given level.
func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	h := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "stackdashd",
		ReportTimestamp: true,
	})
	return slog.New(h), nil
}

// Output returns stdout, or stdout plus <dir>/stackdashd.log when dir is set.
// The returned close func must be called on shutdown.
func Output(dir string) (io.Writer, func() error, error) {
	if dir == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("cannot create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open log file: %w", err)
	}
	return io.MultiWriter(os.Stdout, f), f.Close, nil
}
