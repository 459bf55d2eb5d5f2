package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/flybywiresim/ndterrain-core/accel"
	"github.com/flybywiresim/ndterrain-core/log"
	"github.com/flybywiresim/ndterrain-core/render"
	"github.com/flybywiresim/ndterrain-core/sched"
	"github.com/flybywiresim/ndterrain-core/terrain"
)

type flatSource struct{ elev int16 }

func (s *flatSource) DecodeTile(row, col int) (*terrain.ElevationMap, int, bool, error) {
	m := terrain.NewElevationMap(4, 4)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, s.elev)
		}
	}
	return m, row*1000 + col, true, nil
}

type recordingSink struct {
	mu     sync.Mutex
	meta   []render.FrameMetadata
	frames [][]byte
}

func (r *recordingSink) SendTerrainMapMetadata(side sched.Side, meta render.FrameMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta = append(r.meta, meta)
}

func (r *recordingSink) SendTerrainMapFrame(side sched.Side, png []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, png)
}

func (r *recordingSink) count() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.meta), len(r.frames)
}

func newTestCore(t *testing.T, sink FrameSink) *Core {
	dem := terrain.DEM{SWLat: 40, SWLon: 10, LatStep: 1, LonStep: 1, NumRows: 90, NumCols: 90, ElevationResolution: 30}
	lg := log.New("info", t.TempDir())
	store := terrain.NewStore(dem, &flatSource{elev: 1000}, lg)
	store.VisibilityRange = 20

	core := NewCore(lg, store, accel.NewCPUPool(2), render.NewDefaultPatternMap(), sink, time.Now())
	return core
}

func TestInitRunsWarmUpWithoutEmitting(t *testing.T) {
	sink := &recordingSink{}
	core := newTestCore(t, sink)

	if err := core.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	metaCount, frameCount := sink.count()
	if metaCount != 0 || frameCount != 0 {
		t.Errorf("warm-up must compile kernels without emitting to the sink, got %d meta, %d frames", metaCount, frameCount)
	}
}

func TestInitWithoutAcceleratorIsFatal(t *testing.T) {
	dem := terrain.DEM{SWLat: 40, SWLon: 10, LatStep: 1, LonStep: 1, NumRows: 90, NumCols: 90, ElevationResolution: 30}
	lg := log.New("info", t.TempDir())
	store := terrain.NewStore(dem, &flatSource{elev: 1000}, lg)

	core := NewCore(lg, store, nil, render.NewDefaultPatternMap(), &recordingSink{}, time.Now())
	err := core.Init()
	if err == nil {
		t.Fatal("expected an error when no accelerator is configured")
	}
	werr, ok := err.(*Error)
	if !ok || werr.Kind != AcceleratorUnavailable || !werr.Kind.Fatal() {
		t.Errorf("expected a fatal AcceleratorUnavailable error, got %#v", err)
	}
}

// TestActivatingSideEventuallyEmitsFrames drives the real scheduler
// through a full sweep, since the sweep and timeout closures that Core
// schedules read time.Now() themselves: the test polls Tick with the
// real clock instead of an injected one.
func TestActivatingSideEventuallyEmitsFrames(t *testing.T) {
	sink := &recordingSink{}
	core := newTestCore(t, sink)
	if err := core.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	now := time.Now()
	core.HandleAircraftStatusUpdate(now, AircraftStatusUpdate{
		AdiruDataValid: true,
		Lat:            40.5,
		Lon:            10.5,
		Alt:            5000,
		HeadingDeg:     0,
		NavigationDisplayCapt: NavigationDisplay{Active: true, ArcMode: true, Range: 10},
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		core.Tick(time.Now())
		if _, frames := sink.count(); frames > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no frame emitted for the activated side within 3s")
}

func TestReconfigurationSendsResetMetadata(t *testing.T) {
	sink := &recordingSink{}
	core := newTestCore(t, sink)
	if err := core.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	now := time.Now()
	core.HandleAircraftStatusUpdate(now, AircraftStatusUpdate{
		AdiruDataValid: true, Lat: 40.5, Lon: 10.5, Alt: 5000,
		NavigationDisplayCapt: NavigationDisplay{Active: true, ArcMode: true, Range: 10},
	})
	// range change forces a reset per §4.10.
	core.HandleAircraftStatusUpdate(now, AircraftStatusUpdate{
		AdiruDataValid: true, Lat: 40.5, Lon: 10.5, Alt: 5000,
		NavigationDisplayCapt: NavigationDisplay{Active: true, ArcMode: true, Range: 20},
	})

	metaCount, _ := sink.count()
	if metaCount == 0 {
		t.Fatal("expected at least one reset-metadata message on reconfiguration")
	}
	sink.mu.Lock()
	last := sink.meta[0]
	sink.mu.Unlock()
	if last.MinimumElevation != -1 || last.MaximumElevation != -1 || !last.FirstFrame {
		t.Errorf("expected reset metadata, got %+v", last)
	}
}

func TestTickIsNoOpAfterShutdown(t *testing.T) {
	sink := &recordingSink{}
	core := newTestCore(t, sink)
	if err := core.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	now := time.Now()
	core.HandleAircraftStatusUpdate(now, AircraftStatusUpdate{
		AdiruDataValid: true, Lat: 40.5, Lon: 10.5, Alt: 5000,
		NavigationDisplayCapt: NavigationDisplay{Active: true, ArcMode: true, Range: 10},
	})

	core.Shutdown()

	// Tick must not panic or touch the released cache/accelerator once
	// shutdown has been requested.
	core.Tick(time.Now())

	if _, frames := sink.count(); frames != 0 {
		t.Errorf("expected no frames emitted once shutdown has run, got %d", frames)
	}
}

func TestHandleConnectionLostReleasesCache(t *testing.T) {
	sink := &recordingSink{}
	core := newTestCore(t, sink)
	if err := core.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	core.HandlePositionUpdate(PositionUpdate{Lat: 40.5, Lon: 10.5})
	core.HandleConnectionLost()

	if core.havePosition {
		t.Error("expected havePosition to be cleared on connection loss")
	}
}
