// Package accel abstracts the data-parallel backend that dispatches
// the per-pixel rendering kernels (local-map projection, patch
// histogram, colorization). The default backend is a CPU worker pool;
// a compute-shader backend can be swapped in by implementing
// Accelerator, as long as it preserves per-pixel determinism and the
// sentinel/threshold semantics exactly — the choice of backend affects
// only how a kernel's row range is scheduled, never what it computes.
package accel

import "errors"

// ErrFallbackToCPU is returned by an Accelerator that cannot service a
// dispatch (e.g. a GPU backend rejecting an unsupported grid size). No
// caller in this module checks for it: a Dispatch error is passed up,
// and the render worker logs it and schedules no further sweep tick for
// that side.
var ErrFallbackToCPU = errors.New("accel: falling back to CPU pool")

// Texture is an accelerator-side handle for an uploaded world-map
// elevation grid. Its lifetime is bound to the world-map cache that
// created it: on rebuild the cache releases the old Texture before it
// reallocates the grid and calls UploadGrid for the new one.
type Texture interface {
	Width() int
	Height() int
	// Sample returns the elevation at (x, y), or terrain.Unknown-shaped
	// out-of-range behavior is the caller's job — Sample itself assumes
	// in-range coordinates.
	Sample(x, y int) int16
	Release()
}

// Kernel is one unit of per-pixel or per-patch work, given the
// half-open row range [rowStart, rowEnd) it is responsible for. Row
// semantics (what a "row" means: screen row, patch row, histogram
// bucket range) are defined by the caller, not by the accelerator.
type Kernel func(rowStart, rowEnd int)

// Accelerator dispatches Kernel calls across whatever parallelism the
// backend has available, and owns the world-map texture upload. The
// render worker calls into an Accelerator from a single goroutine
// only.
type Accelerator interface {
	Name() string

	Init() error
	Close()

	// UploadGrid uploads a freshly rebuilt world-map elevation grid.
	UploadGrid(grid []int16, width, height int) (Texture, error)

	// Dispatch runs kernel over [0, rows) split across the backend's
	// available parallelism, and returns once every partition has
	// completed — the flush point required by §5 before any kernel
	// output is read or a dependent Texture is released.
	Dispatch(rows int, kernel Kernel) error
}
