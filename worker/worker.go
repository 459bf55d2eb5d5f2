// Package worker runs the dedicated render worker: the single
// goroutine that owns the world-map cache, the accelerator, and the
// per-side state machines, and that turns aircraft-state messages into
// emitted terrain frames.
package worker

import (
	"sync"
	"time"

	"github.com/flybywiresim/ndterrain-core/accel"
	"github.com/flybywiresim/ndterrain-core/log"
	ndmath "github.com/flybywiresim/ndterrain-core/math"
	"github.com/flybywiresim/ndterrain-core/render"
	"github.com/flybywiresim/ndterrain-core/sched"
	"github.com/flybywiresim/ndterrain-core/terrain"
	"github.com/flybywiresim/ndterrain-core/util"
	"github.com/flybywiresim/ndterrain-core/worldmap"
)

// warmUpAircraft is the synthetic position used to compile/JIT
// kernels ahead of the first real render, per §5.
var warmUpAircraft = AircraftStatusUpdate{
	AdiruDataValid: true,
	Lat:            47.26081085,
	Lon:            11.34965897,
	Alt:            1904,
	HeadingDeg:     260,
	NavigationDisplayCapt: NavigationDisplay{Active: true, ArcMode: true, Range: 10},
}

// TransitionSnapshot is the pull-based retrieval unit for REQ_FRAME_DATA:
// a timestamp, the buffered transition PNGs, and the thresholds active
// when they were produced.
type TransitionSnapshot struct {
	Timestamp  time.Time
	Frames     [][]byte
	Thresholds render.Thresholds
}

type sideRuntime struct {
	state *sched.SideState
	sweep render.Sweep

	lastFrame *render.Frame
	firstSweepDone bool

	geom           render.DisplayGeometry
	lastThresholds render.Thresholds
	lastCutOff     float32

	mu             sync.Mutex
	lastTransition TransitionSnapshot
}

// Core is the dedicated render worker. Every exported method except
// FrameData and Shutdown must be called from the single goroutine that
// owns it; FrameData is safe to call from the RPC server's goroutine
// because it only ever reads a copy guarded by each side's own mutex.
type Core struct {
	lg    *log.Logger
	acc   accel.Accelerator
	store *terrain.Store
	cache *worldmap.Cache
	sched *sched.Scheduler

	patterns render.PatternMap
	sink     FrameSink

	errLog util.ErrorLogger

	sides map[sched.Side]*sideRuntime

	haveAircraft bool
	aircraft     AircraftStatusUpdate
	havePosition bool
	position     ndmath.Point2LL

	lastGrid    [][]terrain.TileKey
	lastGridLen int

	startupBase  time.Time
	shuttingDown util.AtomicBool
}

func NewCore(lg *log.Logger, store *terrain.Store, acc accel.Accelerator, patterns render.PatternMap, sink FrameSink, now time.Time) *Core {
	c := &Core{
		lg:          lg,
		acc:         acc,
		store:       store,
		cache:       worldmap.NewCache(store, acc, lg),
		sched:       sched.NewScheduler(),
		patterns:    patterns,
		sink:        sink,
		startupBase: now,
		sides:       make(map[sched.Side]*sideRuntime),
	}
	for _, side := range []sched.Side{sched.Capt, sched.FO} {
		c.sides[side] = &sideRuntime{state: sched.NewSideState(side, now)}
	}
	return c
}

// Init prepares the accelerator and runs the warm-up render described
// in §5, so kernels are already compiled before the first real frame
// is requested. It returns a fatal AcceleratorUnavailable error if the
// accelerator cannot be initialized.
func (c *Core) Init() error {
	if c.acc == nil {
		return NewError(AcceleratorUnavailable, ErrNoAccelerator)
	}
	if err := c.acc.Init(); err != nil {
		return NewError(AcceleratorUnavailable, err)
	}

	c.warmUp()
	return nil
}

func (c *Core) warmUp() {
	prev := c.aircraft
	havePrev := c.haveAircraft
	c.aircraft = warmUpAircraft
	c.haveAircraft = true
	c.position = warmUpAircraft.Position()
	c.havePosition = true

	if err := c.refreshWorldMap(); err != nil {
		c.lg.Warnf("worker: warm-up world-map refresh failed: %v", err)
	}

	warmCfg := warmUpAircraft.NavigationDisplayCapt
	c.sides[sched.Capt].geom = render.NewDisplayGeometry(warmCfg.ArcMode)
	c.sides[sched.Capt].state.Config = sched.Config{Active: warmCfg.Active, ArcMode: warmCfg.ArcMode, Range: warmCfg.Range, EfisMode: warmCfg.EfisMode}

	if _, err := c.renderFrame(sched.Capt); err != nil {
		c.lg.Warnf("worker: warm-up render failed: %v", err)
	}

	c.aircraft = prev
	c.haveAircraft = havePrev
	if !havePrev {
		c.havePosition = false
	}
}

// HandleConnectionLost stops both sides and releases the world-map
// cache.
func (c *Core) HandleConnectionLost() {
	for side, s := range c.sides {
		c.sched.CancelSide(side, "")
		s.state.Reset()
	}
	c.haveAircraft = false
	c.havePosition = false
	c.cache.Release()
}

// HandlePositionUpdate ingests ground-truth position independent of
// the fuller status update.
func (c *Core) HandlePositionUpdate(p PositionUpdate) {
	c.position = ndmath.Point2LL{p.Lon, p.Lat}
	c.havePosition = true
	if err := c.refreshWorldMap(); err != nil {
		c.lg.Warnf("worker: world-map refresh failed: %v", err)
	}
}

// HandleAircraftStatusUpdate ingests the full periodic state update,
// updates per-side configuration, and drives C10's state machine.
func (c *Core) HandleAircraftStatusUpdate(now time.Time, u AircraftStatusUpdate) {
	c.aircraft = u
	c.haveAircraft = true
	if u.AdiruDataValid {
		c.position = u.Position()
		c.havePosition = true
	}

	if err := c.refreshWorldMap(); err != nil {
		c.lg.Warnf("worker: world-map refresh failed: %v", err)
	}

	for _, side := range []sched.Side{sched.Capt, sched.FO} {
		c.applyConfig(now, side, u.configFor(side))
	}
}

func (c *Core) applyConfig(now time.Time, side sched.Side, cfg NavigationDisplay) {
	s := c.sides[side]
	requiresReset := s.state.ApplyConfig(sched.Config{Active: cfg.Active, ArcMode: cfg.ArcMode, Range: cfg.Range, EfisMode: cfg.EfisMode})

	if requiresReset {
		c.resetSide(side)
	}

	if cfg.Active && s.state.State == sched.Idle {
		s.state.State = sched.Rendering
		s.geom = render.NewDisplayGeometry(cfg.ArcMode)
		c.startSweep(now, side)
	}
}

// resetSide implements the "reconfiguration always supersedes prior
// state" rule of §7: cancel timers, mark for a cleared LastFrame, and
// emit one reset-metadata message.
func (c *Core) resetSide(side sched.Side) {
	s := c.sides[side]
	c.sched.CancelSide(side, "")
	s.state.Reset()
	s.lastFrame = nil
	s.firstSweepDone = false

	if c.sink != nil {
		c.sink.SendTerrainMapMetadata(side, render.ResetMetadata())
	}
}

func (c *Core) refreshWorldMap() error {
	if !c.havePosition {
		return NewError(NoPosition, errNoPositionYet)
	}

	grid := c.store.CreateGridLookupTable(c.position)
	decoded := c.store.UpdatePosition(grid)

	flatLen := 0
	for _, row := range grid {
		flatLen += len(row)
	}

	if decoded || flatLen != c.lastGridLen {
		c.cache.Rebuild(grid)
		c.lastGridLen = flatLen
	}
	c.cache.RecomputeEgoPixel(c.position, grid)
	c.lastGrid = grid
	return nil
}

// Tick runs every scheduler entry due at or before now: sweep frames
// and inter-frame timeouts.
func (c *Core) Tick(now time.Time) {
	if c.shuttingDown.Load() {
		return
	}
	c.sched.RunDue(now)
}

func (c *Core) startSweep(now time.Time, side sched.Side) {
	s := c.sides[side]

	firstSweep := !s.firstSweepDone
	s.sweep.Start(firstSweep, now.Sub(s.state.StartupTimestamp))
	s.firstSweepDone = true
	s.state.ResetRenderingData = false

	s.mu.Lock()
	s.lastTransition = TransitionSnapshot{}
	s.mu.Unlock()

	c.sched.Schedule(now.Add(render.SweepTickInterval), side, "sweep", func() {
		c.runSweepTick(time.Now(), side)
	})
}

func (c *Core) runSweepTick(now time.Time, side sched.Side) {
	s := c.sides[side]
	if s.state.State != sched.Rendering {
		return // stale tick from a cancelled sweep; StaleFrame, silently dropped
	}

	frame, err := c.renderFrame(side)
	if err != nil {
		c.lg.Warnf("worker: render failed for side %v: %v", side, err)
		return
	}

	done := s.sweep.Advance()

	var canvas *render.Canvas
	if done {
		canvas = render.PaintLatched(frame, s.geom)
	} else {
		canvas = s.sweep.Paint(frame, s.lastFrame, s.geom)
	}

	png, err := render.EncodePNG(canvas)
	if err != nil {
		c.lg.Warnf("worker: %v", NewError(FrameEncodeFailure, err))
	} else {
		s.mu.Lock()
		first := len(s.lastTransition.Frames) == 0
		s.mu.Unlock()
		c.emit(side, frame, png, first)
	}

	if done {
		s.lastFrame = frame
		s.state.State = sched.Waiting
		c.sched.Schedule(now.Add(1500*time.Millisecond), side, "timeout", func() {
			c.onWaitingExpired(time.Now(), side)
		})
		return
	}

	c.sched.Schedule(now.Add(render.SweepTickInterval), side, "sweep", func() {
		c.runSweepTick(time.Now(), side)
	})
}

func (c *Core) onWaitingExpired(now time.Time, side sched.Side) {
	s := c.sides[side]
	if s.state.State != sched.Waiting {
		return
	}
	s.state.State = sched.Rendering
	c.startSweep(now, side)
}

func (c *Core) emit(side sched.Side, frame *render.Frame, png []byte, firstFrame bool) {
	s := c.sides[side]

	thresholds := s.lastThresholds
	meta := render.BuildMetadata(thresholds, s.lastCutOff, float32(s.state.Config.Range), int(s.state.Config.EfisMode))
	meta.FirstFrame = firstFrame
	meta.FrameByteCount = len(png)

	if c.sink != nil {
		c.sink.SendTerrainMapMetadata(side, meta)
		c.sink.SendTerrainMapFrame(side, png)
	}

	s.mu.Lock()
	s.lastTransition.Timestamp = time.Now()
	s.lastTransition.Frames = append(s.lastTransition.Frames, png)
	s.lastTransition.Thresholds = thresholds
	s.mu.Unlock()
}

// renderFrame runs C4 through C7 for one side and returns the
// colorized frame, caching the thresholds/cutoff used for the
// subsequent BuildMetadata call in emit.
func (c *Core) renderFrame(side sched.Side) (*render.Frame, error) {
	s := c.sides[side]
	geom := s.geom

	metersPerPixel := render.MetersPerPixel(s.state.Config.Range, geom.MapHeight, s.state.Config.ArcMode)

	local := render.NewLocalMap(geom.MapWidth, geom.MapHeight)
	ego := render.EgoFrame{EgoPixelX: c.cache.EgoPixel.X, EgoPixelY: c.cache.EgoPixel.Y, LatStep: c.cache.LatStep(), LonStep: c.cache.LonStep()}
	aircraftPos := render.AircraftPosition{Lat: c.position.Latitude(), Lon: c.position.Longitude(), HeadingDeg: c.aircraft.HeadingDeg}

	if err := render.ProjectLocalMap(c.acc, c.cache.Texture().Handle(), local, aircraftPos, ego, metersPerPixel, s.state.Config.ArcMode); err != nil {
		return nil, err
	}

	dest := render.Destination{Lat: c.aircraft.DestinationLat, Lon: c.aircraft.DestinationLon, Valid: c.aircraft.DestinationDataValid}
	cutOff := render.CutOffAltitude(c.cache, c.position, c.aircraft.Alt, dest)

	hist, err := render.ReduceHistogram(c.acc, local)
	if err != nil {
		return nil, err
	}

	thresholds := render.AnalyzeThresholds(hist, c.aircraft.Alt, c.aircraft.VerticalSpeed, render.GearDownAltitudeOffset(c.aircraft.GearIsDown), cutOff)
	s.lastThresholds = thresholds
	s.lastCutOff = cutOff

	return render.Colorize(c.acc, local, thresholds, cutOff, c.patterns)
}

// FrameData returns a deep copy of side's last transition snapshot,
// for the RPC server's REQ_FRAME_DATA handler.
func (c *Core) FrameData(side sched.Side) (TransitionSnapshot, error) {
	s, ok := c.sides[side]
	if !ok {
		return TransitionSnapshot{}, NewError(NoConfig, errUnknownSide)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.lastTransition
	snap.Frames = make([][]byte, len(s.lastTransition.Frames))
	for i, f := range s.lastTransition.Frames {
		snap.Frames[i] = append([]byte(nil), f...)
	}
	return snap, nil
}

// HavePosition reports whether the core has ingested an aircraft
// position since startup or since the last ConnectionLost, for
// diagnostics and testing across package boundaries.
func (c *Core) HavePosition() bool {
	return c.havePosition
}

// Shutdown implements REQ_SHUTDOWN: cancel all timers and release the
// accelerator and world-map resources in reverse order of acquisition.
// It races with the worker goroutine's own Tick calls, so it flips
// shuttingDown first to make Tick a no-op before anything is released.
func (c *Core) Shutdown() {
	c.shuttingDown.Store(true)
	for side := range c.sides {
		c.sched.CancelSide(side, "")
	}
	c.cache.Release()
	if c.acc != nil {
		c.acc.Close()
	}
}
