package engine

import "errors"

var (
	ErrAlreadyRunning = errors.New("engine already running")
	ErrNotRunning     = errors.New("engine not running")
	ErrShutdown       = errors.New("engine queue unavailable after shutdown")
	ErrEngineCrashed  = errors.New("engine loop crashed")

	ErrOutputExists   = errors.New("output already open")
	ErrOutputNotFound = errors.New("output not open")
)
