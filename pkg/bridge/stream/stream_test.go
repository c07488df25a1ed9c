package stream

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/softuart/pkg/uart"
)

func TestReadWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte("abc")))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c', 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
}

func TestReadWriterTruncated(t *testing.T) {
	rw := New(bytes.NewBuffer([]byte{5, 0, 0, 0, 'a'}))
	_, err := rw.ReadPacket()
	require.Error(t, err)

	rw = New(bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff}))
	_, err = rw.ReadPacket()
	require.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(New(&buf))
	board, term := r.Observer("board"), r.Observer("terminal")
	board.FrameDone(uart.FrameRecord{Direction: uart.DirTX, Value: 'a'})
	term.FrameDone(uart.FrameRecord{Direction: uart.DirRX, Value: 'a'})
	board.FrameDone(uart.FrameRecord{Direction: uart.DirTX, Value: 'b'})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, r.Run(ctx))

	events, err := ReadEvents(New(&buf))
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "board", events[0].Device)
	require.Equal(t, uint64(1), events[0].Seq)
	require.Equal(t, "terminal", events[1].Device)
	require.Equal(t, uart.DirRX, events[1].Dir())
	require.Equal(t, uint64(2), events[2].Seq)
	require.Equal(t, byte('b'), events[2].Byte())
}
