package worker

import (
	ndmath "github.com/flybywiresim/ndterrain-core/math"
	"github.com/flybywiresim/ndterrain-core/render"
	"github.com/flybywiresim/ndterrain-core/sched"
)

// ConnectionLost tells the worker to stop both sides and release the
// world-map cache.
type ConnectionLost struct{}

// PositionUpdate carries ground-truth position, ingested independently
// of the fuller AircraftStatusUpdate.
type PositionUpdate struct {
	Lat, Lon float32
}

// NavigationDisplay is the per-side display configuration inbound from
// the simulator collaborator.
type NavigationDisplay struct {
	Active   bool
	ArcMode  bool
	Range    float32
	EfisMode int
}

// AircraftStatusUpdate is the full periodic state update from the
// simulator collaborator.
type AircraftStatusUpdate struct {
	AdiruDataValid bool
	Lat, Lon       float32
	Alt            float32
	HeadingDeg     float32
	VerticalSpeed  float32
	GearIsDown     bool

	DestinationDataValid bool
	DestinationLat       float32
	DestinationLon       float32

	NavigationDisplayCapt NavigationDisplay
	NavigationDisplayFO   NavigationDisplay

	// NavigationDisplayRenderingMode names the rendering mode. The core
	// does not read it: the pattern map is the one passed to NewCore,
	// and no status update selects or initializes another.
	NavigationDisplayRenderingMode RenderingMode
}

// RenderingMode is the extension point named in §6 for future modes
// beyond arc mode.
type RenderingMode int

const (
	ArcMode RenderingMode = iota
)

func (u AircraftStatusUpdate) Position() ndmath.Point2LL {
	return ndmath.Point2LL{u.Lon, u.Lat}
}

func (u AircraftStatusUpdate) configFor(side sched.Side) NavigationDisplay {
	if side == sched.Capt {
		return u.NavigationDisplayCapt
	}
	return u.NavigationDisplayFO
}

// FrameSink is the outbound collaborator that receives emitted frames
// and metadata. It is implemented by the simulator connector; the
// render worker never blocks waiting for it to consume a message
// (§5's "suspension points" include simulator-message dispatch, but
// the sink itself must not backpressure the render loop indefinitely).
type FrameSink interface {
	SendTerrainMapMetadata(side sched.Side, meta render.FrameMetadata)
	SendTerrainMapFrame(side sched.Side, png []byte)
}
