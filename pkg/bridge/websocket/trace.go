package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"

	"github.com/robotalks/softuart/pkg/bridge/msgs"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/uart"
)

// Queue sizes
const (
	EventQueueSize  = 1024
	ClientQueueSize = 256
)

// FramesPath is where clients connect to receive frame events.
const FramesPath = "/frames"

// Transmitter accepts bytes to send over the line.
type Transmitter interface {
	Transmit(ctx context.Context, b byte) error
}

// TraceServer streams frame events to websocket clients and transmits the
// bytes of TransmitRequests sent by clients.
type TraceServer struct {
	Addr string
	// Port receives TransmitRequests, nil ignores them.
	Port Transmitter

	eventCh chan *msgs.FrameEvent
	clients map[*client]struct{}
	lock    sync.Mutex
}

type client struct {
	conn   *Conn
	addr   string
	sendCh chan []byte
}

// NewTraceServer creates a TraceServer.
func NewTraceServer(addr string, port Transmitter) *TraceServer {
	return &TraceServer{
		Addr:    addr,
		Port:    port,
		eventCh: make(chan *msgs.FrameEvent, EventQueueSize),
		clients: make(map[*client]struct{}),
	}
}

// Name implements Named.
func (s *TraceServer) Name() string {
	return "trace-server"
}

// Observer returns a uart.FrameObserver labeling frames with device.
func (s *TraceServer) Observer(device string) uart.FrameObserver {
	var seq uint64
	return uart.FrameDoneFunc(func(rec uart.FrameRecord) {
		seq++
		select {
		case s.eventCh <- msgs.NewFrameEvent(device, seq, rec):
		default:
			glog.Warningf("trace queue full, dropped %s frame %d", device, seq)
		}
	})
}

// Handler returns the http.Handler serving FramesPath.
func (s *TraceServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(FramesPath, websocket.Handler(s.serveConn))
	return mux
}

// Clients returns the number of connected clients.
func (s *TraceServer) Clients() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.clients)
}

// Run implements Runnable.
func (s *TraceServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrapf(err, "trace server listen %s", s.Addr)
	}
	glog.Infof("trace server on %s%s", ln.Addr(), FramesPath)
	srv := &http.Server{Handler: s.Handler()}
	return fx.NewRunnerWith(ctx).
		Go(fx.NamedRun("trace-http", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
				return srv.Serve(ln)
			})
		}))).
		Go(fx.NamedRun("trace-broadcast", fx.RunFunc(s.Broadcast))).
		Wait()
}

// Broadcast sends queued frame events to all clients until ctx is done.
func (s *TraceServer) Broadcast(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.eventCh:
			data, err := msgs.Encode(ev)
			if err != nil {
				return err
			}
			s.lock.Lock()
			for c := range s.clients {
				select {
				case c.sendCh <- data:
				default:
					glog.Warningf("trace client %s too slow, dropped frame", c.addr)
				}
			}
			s.lock.Unlock()
		}
	}
}

func (s *TraceServer) serveConn(ws *websocket.Conn) {
	ws.PayloadType = websocket.BinaryFrame
	c := &client{
		conn:   New(ws),
		addr:   ws.Request().RemoteAddr,
		sendCh: make(chan []byte, ClientQueueSize),
	}
	s.lock.Lock()
	s.clients[c] = struct{}{}
	s.lock.Unlock()
	glog.V(2).Infof("trace client %s connected", c.addr)

	ctx, cancel := context.WithCancel(ws.Request().Context())
	defer func() {
		cancel()
		s.lock.Lock()
		delete(s.clients, c)
		s.lock.Unlock()
		glog.V(2).Infof("trace client %s disconnected", c.addr)
	}()
	go s.writeLoop(ctx, c)
	for {
		pkt, err := c.conn.ReadPacket()
		if err != nil {
			return
		}
		if err = s.handlePacket(ctx, pkt); err != nil {
			glog.Warningf("trace client %s: %v", c.addr, err)
		}
	}
}

func (s *TraceServer) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.sendCh:
			if err := c.conn.WritePacket(data); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (s *TraceServer) handlePacket(ctx context.Context, pkt []byte) error {
	msg, err := msgs.DecodeMessage(pkt)
	if err != nil {
		return err
	}
	req, ok := msg.(*msgs.TransmitRequest)
	if !ok {
		return errors.Errorf("unexpected message %T", msg)
	}
	if s.Port == nil {
		return errors.New("transmit not supported")
	}
	for _, b := range req.Data {
		if err = s.Port.Transmit(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
