// Package rpcserver exposes the render worker's control plane over
// net/rpc, gob-encoded and flate-compressed on the wire.
package rpcserver

import (
	"fmt"
	"net"
	"net/rpc"
	"time"

	"github.com/flybywiresim/ndterrain-core/log"
	"github.com/flybywiresim/ndterrain-core/render"
	"github.com/flybywiresim/ndterrain-core/sched"
	"github.com/flybywiresim/ndterrain-core/util"
	"github.com/flybywiresim/ndterrain-core/worker"
)

// ConnectionLostRequest is ConnectionLost's argument. It carries no
// data; net/rpc still requires a concrete argument type.
type ConnectionLostRequest struct{}

// PositionUpdateRequest is PositionUpdate's argument.
type PositionUpdateRequest struct {
	Lat, Lon float32
}

// AircraftStatusUpdateRequest is AircraftStatusUpdate's argument.
type AircraftStatusUpdateRequest struct {
	Update worker.AircraftStatusUpdate
}

// FrameDataRequest is REQ_FRAME_DATA's argument.
type FrameDataRequest struct {
	Side string // "L" or "R"
}

// ThresholdSummary is the wire form of a frame's active thresholds.
type ThresholdSummary struct {
	MinElevation          float32
	MinElevationIsWarning bool
	MinElevationIsCaution bool
	MaxElevation          float32
	MaxElevationIsWarning bool
	MaxElevationIsCaution bool
}

// FrameDataResponse is REQ_FRAME_DATA's reply.
type FrameDataResponse struct {
	Side       string
	Timestamp  time.Time
	Thresholds ThresholdSummary
	Frames     [][]byte
}

// ShutdownFunc is called once REQ_SHUTDOWN has finished tearing down
// the render worker, so the process supervisor can exit.
type ShutdownFunc func()

// Service is the net/rpc receiver exposing the control plane. Its
// methods run on whatever goroutine net/rpc dispatches them on, which
// is never the render worker's own goroutine — Core.FrameData and
// Core.Shutdown are the only Core methods safe to call from here.
type Service struct {
	core     *worker.Core
	lg       *log.Logger
	onShutdown ShutdownFunc
}

func NewService(core *worker.Core, lg *log.Logger, onShutdown ShutdownFunc) *Service {
	return &Service{core: core, lg: lg, onShutdown: onShutdown}
}

// ReqFrameData implements REQ_FRAME_DATA.
func (s *Service) ReqFrameData(req FrameDataRequest, reply *FrameDataResponse) error {
	side, ok := sched.ParseSide(req.Side)
	if !ok {
		return fmt.Errorf("rpcserver: unknown side %q", req.Side)
	}

	snap, err := s.core.FrameData(side)
	if err != nil {
		return err
	}

	t := snap.Thresholds
	summary := ThresholdSummary{MaxElevation: t.MaxElevation, MinElevation: t.MinElevation}
	if t.Mode == render.ModeNormal {
		n := t.Normal
		summary.MinElevationIsWarning = n.LowDensityYellow <= n.HighDensityGreen
		summary.MaxElevationIsCaution = t.MaxElevation >= n.HighDensityRed
		summary.MaxElevationIsWarning = !summary.MaxElevationIsCaution
	} else {
		// Peaks mode: render.BuildMetadata reports both modes as
		// PeaksSeverity, so no warning or caution flag is set.
	}

	*reply = FrameDataResponse{Side: req.Side, Timestamp: snap.Timestamp, Thresholds: summary, Frames: snap.Frames}
	return nil
}

// ConnectionLost implements the inbound simulator message of the same
// name: the collaborator lost its connection to the simulator and
// every side must reset as if freshly powered on.
func (s *Service) ConnectionLost(_ ConnectionLostRequest, _ *struct{}) error {
	s.core.HandleConnectionLost()
	return nil
}

// PositionUpdate implements the inbound simulator message of the same
// name: ground-truth position independent of the fuller status update.
func (s *Service) PositionUpdate(req PositionUpdateRequest, _ *struct{}) error {
	s.core.HandlePositionUpdate(worker.PositionUpdate{Lat: req.Lat, Lon: req.Lon})
	return nil
}

// AircraftStatusUpdate implements the inbound simulator message of the
// same name: the full periodic state update driving C10's state
// machine. The dispatch time is stamped here rather than carried on
// the wire, since it governs scheduling decisions (§4.10 reset
// timers) that must run against this process's own clock.
func (s *Service) AircraftStatusUpdate(req AircraftStatusUpdateRequest, _ *struct{}) error {
	s.core.HandleAircraftStatusUpdate(time.Now(), req.Update)
	return nil
}

// ReqShutdown implements REQ_SHUTDOWN.
func (s *Service) ReqShutdown(_ struct{}, _ *struct{}) error {
	s.core.Shutdown()
	if s.onShutdown != nil {
		s.onShutdown()
	}
	return nil
}

// Serve registers Service and accepts connections on listener until it
// is closed, dispatching each with a gob codec compressed via
// util.CompressedConn.
func Serve(listener net.Listener, svc *Service) error {
	server := rpc.NewServer()
	if err := server.Register(svc); err != nil {
		return err
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}

		cc, err := util.MakeCompressedConn(conn)
		if err != nil {
			svc.lg.Warnf("rpcserver: compressed conn setup failed: %v", err)
			conn.Close()
			continue
		}

		go server.ServeCodec(util.MakeGOBServerCodec(cc, svc.lg))
	}
}
