package worker

import "errors"

// ErrorKind classifies a worker-level error for the logging and
// propagation rules in §7.
type ErrorKind int

const (
	// MissingTerrainFile is fatal at startup: the core still
	// initializes, with an empty world, and logs.
	MissingTerrainFile ErrorKind = iota
	// AcceleratorUnavailable is fatal: surface and exit.
	AcceleratorUnavailable
	// StaleFrame is silent: dropped when ResetRenderingData is set.
	StaleFrame
	// UnknownRenderingMode is logged; no emission.
	UnknownRenderingMode
	// NoPosition is a logged warning; the tick is skipped.
	NoPosition
	// NoConfig is a logged warning; the tick is skipped.
	NoConfig
	// FrameEncodeFailure is logged; the frame is dropped and the sweep
	// continues.
	FrameEncodeFailure
)

func (k ErrorKind) String() string {
	switch k {
	case MissingTerrainFile:
		return "missing terrain file"
	case AcceleratorUnavailable:
		return "accelerator unavailable"
	case StaleFrame:
		return "stale frame"
	case UnknownRenderingMode:
		return "unknown rendering mode"
	case NoPosition:
		return "no position"
	case NoConfig:
		return "no config"
	case FrameEncodeFailure:
		return "frame encode failure"
	default:
		return "unknown error kind"
	}
}

// Fatal reports whether an error of this kind must terminate the
// worker after emitting a reset-metadata message per active side.
func (k ErrorKind) Fatal() bool {
	return k == AcceleratorUnavailable
}

// Error wraps an underlying error with its ErrorKind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, err error) *Error { return &Error{Kind: kind, Err: err} }

var ErrNoAccelerator = errors.New("no accelerator backend registered")
var errNoPositionYet = errors.New("no position update received yet")
var errUnknownSide = errors.New("unknown side")
