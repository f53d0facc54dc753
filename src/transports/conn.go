// Package transports hosts carrier websocket connections. Each connection
// gets one reader goroutine (wire message -> typed frame) and one writer
// goroutine (typed frame -> wire message); the supervisor in src/call makes
// every policy decision.
package transports

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/square-key-labs/voicecore-ai/src/carriers"
	"github.com/square-key-labs/voicecore-ai/src/frames"
	"github.com/square-key-labs/voicecore-ai/src/logger"
)

const (
	inboundBuffer  = 256
	outboundBuffer = 64

	// writeTimeout bounds a single socket write so a stalled carrier cannot
	// wedge the writer goroutine past the teardown deadline.
	writeTimeout = 2 * time.Second
)

// CarrierConn wraps one live carrier websocket. It owns the socket: only
// its reader and writer goroutines touch the connection.
type CarrierConn struct {
	adapter carriers.Adapter
	conn    *websocket.Conn
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	in  chan frames.Frame
	out chan frames.Frame

	closeOnce sync.Once
}

// NewCarrierConn starts reader and writer goroutines for an upgraded
// websocket connection.
func NewCarrierConn(ctx context.Context, conn *websocket.Conn, adapter carriers.Adapter, log *logger.Logger) *CarrierConn {
	if log == nil {
		log = logger.WithPrefix(string(adapter.Type()))
	}

	cctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(cctx)

	c := &CarrierConn{
		adapter: adapter,
		conn:    conn,
		log:     log,
		ctx:     gctx,
		cancel:  cancel,
		group:   group,
		in:      make(chan frames.Frame, inboundBuffer),
		out:     make(chan frames.Frame, outboundBuffer),
	}

	if hello := adapter.OnConnect(); hello != nil {
		c.in <- hello
	}

	group.Go(c.readLoop)
	group.Go(c.writeLoop)
	return c
}

// Adapter returns the protocol adapter bound to this connection.
func (c *CarrierConn) Adapter() carriers.Adapter { return c.adapter }

// Frames returns the inbound frame stream, closed when the connection ends.
func (c *CarrierConn) Frames() <-chan frames.Frame { return c.in }

// Send enqueues an outbound frame. Control frames (interrupt, hangup) are
// never dropped; media frames are dropped with a log line when the bounded
// buffer is full, since stale audio is worse than a skip.
func (c *CarrierConn) Send(frame frames.Frame) error {
	if cat, ok := frame.(frames.Categorizable); ok && cat.Category() == frames.MediaCategory {
		select {
		case c.out <- frame:
			return nil
		case <-c.ctx.Done():
			return c.ctx.Err()
		default:
			c.log.Warn("outbound buffer full, dropping media frame")
			return nil
		}
	}

	select {
	case c.out <- frame:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Drain discards all buffered outbound media. This is the interruption hot
// path; it must return well inside the 50 ms budget.
func (c *CarrierConn) Drain() {
	for {
		select {
		case <-c.out:
		default:
			return
		}
	}
}

// Close tears the connection down cooperatively. Idempotent.
func (c *CarrierConn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
	return nil
}

// Wait blocks until both loops have exited.
func (c *CarrierConn) Wait() error {
	err := c.group.Wait()
	return err
}

func (c *CarrierConn) readLoop() error {
	defer close(c.in)
	defer c.cancel()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("carrier read error: %v", err)
			}
			c.deliver(frames.NewCallClosedFrame(err.Error()))
			return nil
		}

		frame, err := c.adapter.Decode(carriers.Message{Kind: kind, Data: data})
		if err != nil {
			// Protocol violations are surfaced to the supervisor; the reader
			// itself never terminates the call.
			c.deliver(frames.NewErrorFrame(err))
			continue
		}
		if frame == nil {
			continue
		}
		c.deliver(frame)
	}
}

func (c *CarrierConn) deliver(frame frames.Frame) {
	select {
	case c.in <- frame:
	case <-c.ctx.Done():
	}
}

func (c *CarrierConn) writeLoop() error {
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case frame := <-c.out:
			msgs, err := c.adapter.Encode(frame)
			if err != nil {
				c.log.Warn("encode failed: %v", err)
				continue
			}
			for _, msg := range msgs {
				c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.conn.WriteMessage(msg.Kind, msg.Data); err != nil {
					if c.ctx.Err() == nil {
						c.log.Warn("carrier write error: %v", err)
					}
					return nil
				}
			}
		}
	}
}
