package sched

import "time"

// Config is a side's display configuration, per §3.
type Config struct {
	Active   bool
	ArcMode  bool
	Range    float32
	EfisMode int
}

// Equal reports whether two configs would produce the same rendering
// (ignoring Active, which the caller checks separately).
func (c Config) Equal(o Config) bool {
	return c.ArcMode == o.ArcMode && c.Range == o.Range && c.EfisMode == o.EfisMode
}

// SideState is the per-display state described in §3: the display
// configuration, the state-machine state and the flags C10 needs to
// drive it. The last emitted frame and the last transition snapshot are
// kept by package worker, not here.
type SideState struct {
	Side  Side
	State State

	Config     Config
	prevConfig Config
	haveConfig bool

	StartupTimestamp time.Time

	// ResetRenderingData is set on reconfiguration so the next sweep
	// starts from a cleared LastFrame instead of transitioning from
	// stale content.
	ResetRenderingData bool
}

func NewSideState(side Side, now time.Time) *SideState {
	return &SideState{
		Side:             side,
		State:            Idle,
		StartupTimestamp: now.Add(time.Duration(side.StartupOffset()) * time.Millisecond),
	}
}

// ApplyConfig updates the side's configuration and reports whether the
// change requires the state machine to reset to Idle: the side was
// active and became inactive, or any of range/arcMode/efisMode changed
// while it remains active.
func (s *SideState) ApplyConfig(c Config) (requiresReset bool) {
	wasActive := s.haveConfig && s.Config.Active
	changed := s.haveConfig && !s.Config.Equal(c)

	s.prevConfig = s.Config
	s.Config = c
	s.haveConfig = true

	if wasActive && (!c.Active || changed) {
		return true
	}
	return false
}

// Reset transitions the side to Idle and marks it to start the next
// sweep from a cleared frame, per §4.10.
func (s *SideState) Reset() {
	s.State = Idle
	s.ResetRenderingData = true
}
