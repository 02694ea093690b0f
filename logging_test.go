package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultLogPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	assertEqual(t, defaultLogPath(), filepath.Join("/tmp/state", "mixdeck", "mixdeck.log"), "log path")
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mixdeck.log")

	logger, closer, err := newLogger("debug", path)
	assertNoError(t, err)
	logger.Debug().Str("call", callSeek).Msg("command sent")
	assertNoError(t, closer.Close())

	data, err := os.ReadFile(path)
	assertNoError(t, err)
	out := string(data)
	if !strings.Contains(out, `"message":"command sent"`) || !strings.Contains(out, `"call":"seek"`) {
		t.Errorf("Unexpected log output: %s", out)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	t.Run("disabled writes nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "off.log")
		_, closer, err := newLogger("disabled", path)
		assertNoError(t, err)
		assertNoError(t, closer.Close())
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Expected no log file, got %v", err)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		_, _, err := newLogger("loud", filepath.Join(t.TempDir(), "x.log"))
		assertError(t, err, "invalid level")
	})
}
