// Command ndterraincore runs the terrain-awareness navigation-display
// rasterizer's dedicated render worker and exposes its control plane
// over RPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flybywiresim/ndterrain-core/accel"
	"github.com/flybywiresim/ndterrain-core/log"
	"github.com/flybywiresim/ndterrain-core/render"
	"github.com/flybywiresim/ndterrain-core/rpcserver"
	"github.com/flybywiresim/ndterrain-core/sched"
	"github.com/flybywiresim/ndterrain-core/terrain"
	"github.com/flybywiresim/ndterrain-core/util"
	"github.com/flybywiresim/ndterrain-core/worker"
)

var (
	logLevel     = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir       = flag.String("logdir", "", "log file directory")
	rpcPort      = flag.Int("port", 6785, "port to listen on for the control-plane RPC")
	terrainDir   = flag.String("terraindir", "", "directory containing the decoded terrain-map file and tile cache")
	backendKind  = flag.String("backend", "local", "remote terrain backend: local, gcs, or s3")
	backendName  = flag.String("bucket", "", "bucket name when -backend is gcs or s3")
	cpuWorkers   = flag.Int("cpuworkers", 0, "CPU accelerator worker count (0 = runtime.NumCPU)")
)

func setupSignalHandler(core *worker.Core, lg *log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "Caught signal, shutting down...")
		core.Shutdown()
		fmt.Fprintln(os.Stderr, "Shutdown complete, exiting")
		os.Exit(0)
	}()
}

func makeBackend(lg *log.Logger) (terrain.Backend, error) {
	switch *backendKind {
	case "local":
		return terrain.NewLocalDiskBackend(*terrainDir), nil
	case "gcs":
		if *backendName == "" {
			return nil, fmt.Errorf("-bucket is required for -backend=gcs")
		}
		return terrain.NewGCSBackend(context.Background(), *backendName)
	case "s3":
		if *backendName == "" {
			return nil, fmt.Errorf("-bucket is required for -backend=s3")
		}
		return terrain.NewS3Backend(context.Background(), *backendName)
	default:
		return nil, fmt.Errorf("unknown -backend %q", *backendKind)
	}
}

func main() {
	flag.Parse()

	lg := log.New(*logLevel, *logDir)
	lg.Info("ndterraincore starting")

	errLog := &util.ErrorLogger{}

	if *terrainDir == "" {
		errLog.ErrorString("no -terraindir given; starting with an empty terrain world")
	}

	dem := terrain.DEM{SWLat: -90, SWLon: -180, LatStep: 1, LonStep: 1, NumRows: 180, NumCols: 360, ElevationResolution: 30}

	backend, err := makeBackend(lg)
	if err != nil {
		errLog.Error(err)
	} else if *terrainDir != "" {
		// the header rarely changes between runs against the same
		// terrain-map file, so cache it locally to skip re-parsing
		// (or a remote round trip against gcs/s3) on every restart.
		parsed, err := terrain.LoadDEMHeader(*terrainDir, func() (terrain.DEM, error) {
			return terrain.ParseDEMHeaderFromBackend(backend)
		})
		if err != nil {
			errLog.Error(fmt.Errorf("failed to load DEM header, falling back to a whole-earth default: %w", err))
		} else {
			dem = parsed
		}
	}
	if errLog.HaveErrors() {
		errLog.PrintErrors(lg)
	}

	var source terrain.TileSource
	if backend != nil && *terrainDir != "" {
		source = &terrain.CachingTileSource{BaseDir: *terrainDir, Source: &terrain.BackendTileSource{Backend: backend}}
	}

	store := terrain.NewStore(dem, source, lg)
	store.VisibilityRange = 20

	acc := accel.NewCPUPool(*cpuWorkers)
	patterns := render.NewDefaultPatternMap()

	sink := &logOnlySink{lg: lg}
	core := worker.NewCore(lg, store, acc, patterns, sink, time.Now())

	if err := core.Init(); err != nil {
		lg.Errorf("failed to initialize render worker: %v", err)
		os.Exit(1)
	}

	setupSignalHandler(core, lg)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *rpcPort))
	if err != nil {
		lg.Errorf("failed to listen on port %d: %v", *rpcPort, err)
		os.Exit(1)
	}

	svc := rpcserver.NewService(core, lg, func() { os.Exit(0) })
	lg.Infof("listening for control-plane RPC on port %d", *rpcPort)
	if err := rpcserver.Serve(listener, svc); err != nil {
		lg.Errorf("rpc server exited: %v", err)
		os.Exit(1)
	}
}

// logOnlySink is a placeholder FrameSink for standalone operation
// without a live simulator connector; it exists so ndterraincore can
// run (and its warm-up pass can be observed via -loglevel=debug)
// without the external simulator collaborator described in §6.
type logOnlySink struct{ lg *log.Logger }

func (s *logOnlySink) SendTerrainMapMetadata(side sched.Side, meta render.FrameMetadata) {
	s.lg.Debugf("terrain metadata for %v: min=%v max=%v firstFrame=%v", side, meta.MinimumElevation, meta.MaximumElevation, meta.FirstFrame)
}

func (s *logOnlySink) SendTerrainMapFrame(side sched.Side, png []byte) {
	s.lg.Debugf("terrain frame for %v: %d bytes", side, len(png))
}
