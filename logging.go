package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// defaultLogPath is $XDG_STATE_HOME/mixdeck/mixdeck.log, falling back to
// ~/.local/state/mixdeck. The TUI owns the terminal so logs go to a file.
func defaultLogPath() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "mixdeck.log")
		}
		stateHome = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateHome, "mixdeck", "mixdeck.log")
}

// newLogger opens the log file and returns a logger at the given level. The
// returned closer releases the file.
func newLogger(level, path string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.Disabled {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}

	if path == "" {
		path = defaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("could not create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("could not open log file: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(file).Level(lvl).With().Timestamp().Logger()
	logger.Info().Str("path", path).Msg("logger initialized")
	return logger, file, nil
}
