package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/softuart/pkg/bridge/msgs"
	"github.com/robotalks/softuart/pkg/uart"
)

type fakeTransmitter struct {
	txCh chan byte
}

func (f *fakeTransmitter) Transmit(ctx context.Context, b byte) error {
	f.txCh <- b
	return nil
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + FramesPath
	ws, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	return ws
}

func waitClients(t *testing.T, s *TraceServer, n int) {
	deadline := time.Now().Add(time.Second)
	for s.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expect %d clients, got %d", n, s.Clients())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTraceServerBroadcast(t *testing.T) {
	port := &fakeTransmitter{txCh: make(chan byte, 4)}
	s := NewTraceServer("", port)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Broadcast(ctx)

	ws1, ws2 := dial(t, srv), dial(t, srv)
	waitClients(t, s, 2)

	s.Observer("board").FrameDone(uart.FrameRecord{Direction: uart.DirTX, Value: 'z'})
	for _, ws := range []*websocket.Conn{ws1, ws2} {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
		var pkt []byte
		require.NoError(t, websocket.Message.Receive(ws, &pkt))
		msg, err := msgs.DecodeMessage(pkt)
		require.NoError(t, err)
		ev := msg.(*msgs.FrameEvent)
		require.Equal(t, "board", ev.Device)
		require.Equal(t, byte('z'), ev.Byte())
		require.Equal(t, uart.DirTX, ev.Dir())
	}

	data, err := msgs.Encode(&msgs.TransmitRequest{Data: []byte("hi")})
	require.NoError(t, err)
	require.NoError(t, websocket.Message.Send(ws1, data))
	require.Equal(t, byte('h'), <-port.txCh)
	require.Equal(t, byte('i'), <-port.txCh)

	ws2.Close()
	waitClients(t, s, 1)
	ws1.Close()
	waitClients(t, s, 0)
}
