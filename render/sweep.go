package render

import "time"

const (
	SweepTickInterval = 40 * time.Millisecond
	frameValidityPeriod = 2500 * time.Millisecond
)

// Sweep drives the radar-style reveal of a side's newly rendered
// frame: on every 40ms tick, the band [0, progress] is painted from
// the new frame and the rest from the previous one, until progress
// reaches 90 degrees and the new frame is latched.
type Sweep struct {
	progress float32 // degrees, [0, 90]
	started  bool
}

// Start begins a new sweep. sinceStartup is the elapsed time since the
// side's startupTimestamp; on the very first sweep after startup this
// resyncs the starting angle to where a continuously running sweep
// would be, per §4.9, instead of always starting a visible pass at 0.
func (s *Sweep) Start(firstSweep bool, sinceStartup time.Duration) {
	s.started = true
	if firstSweep {
		frac := float64(sinceStartup%frameValidityPeriod) / float64(frameValidityPeriod)
		s.progress = float32(frac * sweepFullSweepDegrees)
	} else {
		s.progress = 0
	}
}

// Advance steps the sweep forward by one tick and reports whether it
// has completed the full 90 degree pass.
func (s *Sweep) Advance() (done bool) {
	s.progress += sweepAngularStep
	if s.progress >= sweepFullSweepDegrees {
		s.progress = sweepFullSweepDegrees
		return true
	}
	return false
}

// Paint renders the current sweep frame onto a fresh canvas.
func (s *Sweep) Paint(newFrame, prevFrame *Frame, geom DisplayGeometry) *Canvas {
	c := NewCanvas()
	paintSweep(c, newFrame, prevFrame, geom, 0, s.progress)
	return c
}

// PaintLatched renders newFrame with no sweep band at all, i.e. fully
// replacing prevFrame — used once progress reaches 90 degrees.
func PaintLatched(newFrame *Frame, geom DisplayGeometry) *Canvas {
	c := NewCanvas()
	paintFull(c, newFrame, geom)
	return c
}
