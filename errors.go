package main

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveMedia is the expected "nothing is playing" result of a media read.
	ErrNoActiveMedia = errors.New("no active media")

	// ErrTransport matches any *TransportError.
	ErrTransport = errors.New("transport failure")

	// ErrSessionState is returned by Start on a synchronizer that already ran.
	ErrSessionState = errors.New("synchronizer already started or stopped")

	// ErrNotRunning is returned by intents issued outside a running session.
	ErrNotRunning = errors.New("synchronizer not running")
)

// TransportError reports a command that could not be delivered or that the
// native layer rejected.
type TransportError struct {
	Call string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Call, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// transportErr wraps err for call, passing nil and ErrNoActiveMedia through.
func transportErr(call string, err error) error {
	if err == nil || errors.Is(err, ErrNoActiveMedia) {
		return err
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Call: call, Err: err}
}
