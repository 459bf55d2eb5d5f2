// Command ndterrainmonitor is a terminal status viewer for a running
// ndterraincore process: it polls REQ_FRAME_DATA over the control-plane
// RPC for both sides and renders their current thresholds and frame
// sizes in a tcell screen, with a raw godump.Dump of the last response
// available on demand for debugging.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/rpc"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/goforj/godump"

	"github.com/flybywiresim/ndterrain-core/rpcserver"
	"github.com/flybywiresim/ndterrain-core/util"
)

var (
	addr    = flag.String("addr", "localhost:6785", "ndterraincore control-plane address")
	period  = flag.Duration("period", time.Second, "poll interval")
)

// sideStatus is the last known state of one side, kept across failed
// polls so a transient RPC error doesn't blank the screen.
type sideStatus struct {
	resp    rpcserver.FrameDataResponse
	err     error
	polled  time.Time
}

type app struct {
	client   *rpc.Client
	sides    map[string]*sideStatus
	dumpMode bool
}

func dial(addr string) (*rpc.Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	cc, err := util.MakeCompressedConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return rpc.NewClientWithCodec(util.MakeGOBClientCodec(cc)), nil
}

func (a *app) poll() {
	for _, side := range []string{"L", "R"} {
		st := a.sides[side]
		var resp rpcserver.FrameDataResponse
		err := a.client.Call("Service.ReqFrameData", rpcserver.FrameDataRequest{Side: side}, &resp)
		if err != nil {
			st.err = err
			continue
		}
		st.err = nil
		st.resp = resp
		st.polled = time.Now()
	}
}

func (a *app) shutdown() {
	_ = a.client.Call("Service.ReqShutdown", struct{}{}, &struct{}{})
}

func main() {
	flag.Parse()

	client, err := dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndterrainmonitor: cannot connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer client.Close()

	a := &app{
		client: client,
		sides:  map[string]*sideStatus{"L": {}, "R": {}},
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndterrainmonitor: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "ndterrainmonitor: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))

	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(*period)
	defer ticker.Stop()

	a.poll()
	draw(screen, a)

	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				switch {
				case ev.Key() == tcell.KeyEscape || ev.Rune() == 'q':
					return
				case ev.Rune() == 'd':
					a.dumpMode = !a.dumpMode
				case ev.Rune() == 'r':
					a.poll()
				case ev.Rune() == 's':
					a.shutdown()
					return
				}
			}
			draw(screen, a)
		case <-ticker.C:
			a.poll()
			draw(screen, a)
		}
	}
}

func draw(screen tcell.Screen, a *app) {
	screen.Clear()
	width, _ := screen.Size()

	header := tcell.StyleDefault.Bold(true).Reverse(true)
	label := tcell.StyleDefault.Foreground(tcell.ColorTeal)
	warn := tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	caution := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	normal := tcell.StyleDefault.Foreground(tcell.ColorGreen)

	drawText(screen, 0, 0, width, header, fmt.Sprintf(" ndterrainmonitor  %s  [q]uit [r]efresh [s]hutdown [d]ump ", *addr))

	y := 2
	for _, side := range []string{"L", "R"} {
		st := a.sides[side]
		drawText(screen, 0, y, width, label, fmt.Sprintf(" Side %s ", side))
		y++
		if st.err != nil {
			drawText(screen, 2, y, width-2, warn, fmt.Sprintf("error: %v (last ok: %v)", st.err, st.polled.Format(time.TimeOnly)))
			y += 2
			continue
		}
		t := st.resp.Thresholds
		style := normal
		if t.MaxElevationIsWarning || t.MinElevationIsWarning {
			style = warn
		} else if t.MaxElevationIsCaution || t.MinElevationIsCaution {
			style = caution
		}
		drawText(screen, 2, y, width-2, style, fmt.Sprintf("min=%.0fft max=%.0fft  as-of %s", t.MinElevation, t.MaxElevation, st.resp.Timestamp.Format(time.TimeOnly)))
		y++
		drawText(screen, 2, y, width-2, tcell.StyleDefault, fmt.Sprintf("frames: %d, bytes: %s", len(st.resp.Frames), sumBytes(st.resp.Frames)))
		y += 2
	}

	if a.dumpMode {
		dump := godump.DumpStr(a.sides)
		for _, line := range splitLines(dump) {
			if y >= screenHeight(screen) {
				break
			}
			drawText(screen, 0, y, width, tcell.StyleDefault.Foreground(tcell.ColorGray), line)
			y++
		}
	}

	screen.Show()
}

func screenHeight(screen tcell.Screen) int {
	_, h := screen.Size()
	return h - 1
}

func sumBytes(frames [][]byte) string {
	n := 0
	for _, f := range frames {
		n += len(f)
	}
	return fmt.Sprintf("%d", n)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func drawText(screen tcell.Screen, x, y, maxWidth int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= maxWidth {
			break
		}
		screen.SetContent(x+col, y, r, nil, style)
		col++
	}
}
