package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource of the program so its deferred cleanup runs before
// main decides the exit status.
func run(args []string) error {
	fs := pflag.NewFlagSet("mixdeck", pflag.ContinueOnError)
	defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := initConfig(fs); err != nil {
		return err
	}
	cfg := config.Get()

	logger, logFile, err := newLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	} else {
		defer logFile.Close()
	}

	ctrl := NewNativeController(time.Duration(cfg.Control.CallTimeoutMs)*time.Millisecond, logger)
	opts := cfg.syncOptions()
	opts.Logger = logger
	synchronizer := NewSynchronizer(ctrl, ctrl, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := synchronizer.Start(ctx); err != nil {
		return err
	}
	defer synchronizer.Stop()

	initialModel := newModel(synchronizer, cfg, kittyGraphicsSupported())
	if _, err := tea.NewProgram(initialModel, tea.WithAltScreen()).Run(); err != nil {
		logger.Error().Err(err).Msg("program exited with error")
		return err
	}
	return nil
}
