package util

import (
	"bufio"
	"compress/flate"
	"encoding/gob"
	"io"
	"net"
	"net/rpc"

	"github.com/flybywiresim/ndterrain-core/log"
)

// gobServerCodec is net/rpc/server.go's codec, factored out so it can
// be wrapped with compression and logging.
type gobServerCodec struct {
	rwc    io.ReadWriteCloser
	dec    *gob.Decoder
	enc    *gob.Encoder
	encBuf *bufio.Writer
	lg     *log.Logger
	closed bool
}

func (c *gobServerCodec) ReadRequestHeader(r *rpc.Request) error { return c.dec.Decode(r) }
func (c *gobServerCodec) ReadRequestBody(body any) error         { return c.dec.Decode(body) }

func (c *gobServerCodec) WriteResponse(r *rpc.Response, body any) (err error) {
	if err = c.enc.Encode(r); err != nil {
		if c.encBuf.Flush() == nil {
			c.lg.Errorf("rpc: gob error encoding response: %v", err)
			c.Close()
		}
		return
	}
	if err = c.enc.Encode(body); err != nil {
		if c.encBuf.Flush() == nil {
			c.lg.Errorf("rpc: gob error encoding body: %v", err)
			c.Close()
		}
		return
	}
	return c.encBuf.Flush()
}

func (c *gobServerCodec) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rwc.Close()
}

func MakeGOBServerCodec(conn io.ReadWriteCloser, lg *log.Logger) rpc.ServerCodec {
	buf := bufio.NewWriter(conn)
	return &gobServerCodec{rwc: conn, dec: gob.NewDecoder(conn), enc: gob.NewEncoder(buf), lg: lg, encBuf: buf}
}

// gobClientCodec is the client-side counterpart, used by ndterrainmonitor
// to poll REQ_FRAME_DATA over the same compressed gob wire format the
// server speaks.
type gobClientCodec struct {
	rwc    io.ReadWriteCloser
	dec    *gob.Decoder
	enc    *gob.Encoder
	encBuf *bufio.Writer
}

func (c *gobClientCodec) WriteRequest(r *rpc.Request, body any) (err error) {
	if err = c.enc.Encode(r); err != nil {
		return
	}
	if err = c.enc.Encode(body); err != nil {
		return
	}
	return c.encBuf.Flush()
}

func (c *gobClientCodec) ReadResponseHeader(r *rpc.Response) error { return c.dec.Decode(r) }
func (c *gobClientCodec) ReadResponseBody(body any) error          { return c.dec.Decode(body) }
func (c *gobClientCodec) Close() error                             { return c.rwc.Close() }

func MakeGOBClientCodec(conn io.ReadWriteCloser) rpc.ClientCodec {
	encBuf := bufio.NewWriter(conn)
	return &gobClientCodec{conn, gob.NewDecoder(conn), gob.NewEncoder(encBuf), encBuf}
}

// CompressedConn wraps a net.Conn with flate compression, since the
// control plane's frame-data responses carry PNG-encoded terrain maps
// that are large enough to benefit even though PNG itself is already
// compressed — the win is on the gob framing and repeated struct tags.
type CompressedConn struct {
	net.Conn
	r io.ReadCloser
	w *flate.Writer
}

func MakeCompressedConn(c net.Conn) (*CompressedConn, error) {
	cc := &CompressedConn{Conn: c}
	cc.r = flate.NewReader(c)

	w, err := flate.NewWriter(c, 3)
	if err != nil {
		return nil, err
	}
	cc.w = w
	return cc, nil
}

func (c *CompressedConn) Read(b []byte) (int, error) { return c.r.Read(b) }

func (c *CompressedConn) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.w.Flush()
	return n, err
}

func (c *CompressedConn) Close() error {
	c.r.Close()
	c.w.Close()
	return c.Conn.Close()
}
