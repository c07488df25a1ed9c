package serialport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTransmitter struct {
	txCh chan byte
}

func (f *fakeTransmitter) Transmit(ctx context.Context, b byte) error {
	select {
	case f.txCh <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPump(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	port := &fakeTransmitter{txCh: make(chan byte, 8)}
	output := make(chan byte, 8)
	p := &Pump{Stream: local, Closer: local, Port: port, Output: output}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	_, err := remote.Write([]byte("ab"))
	require.NoError(t, err)
	require.Equal(t, byte('a'), <-port.txCh)
	require.Equal(t, byte('b'), <-port.txCh)

	output <- 'x'
	output <- 'y'
	require.NoError(t, remote.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 2)
	_, err = io.ReadFull(remote, buf)
	require.NoError(t, err)
	require.Equal(t, []byte("xy"), buf)

	cancel()
	require.NoError(t, <-errCh)
}

func TestPumpInputEOFKeepsOutput(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	port := &fakeTransmitter{txCh: make(chan byte, 8)}
	output := make(chan byte, 8)
	stream := struct {
		io.Reader
		io.Writer
	}{strings.NewReader("q"), local}
	p := &Pump{Stream: stream, Port: port, Output: output}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	require.Equal(t, byte('q'), <-port.txCh)
	// input is exhausted, the echo still reaches the stream.
	output <- 'q'
	require.NoError(t, remote.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 1)
	_, err := io.ReadFull(remote, buf)
	require.NoError(t, err)
	require.Equal(t, []byte("q"), buf)
	select {
	case err := <-errCh:
		t.Fatalf("pump stopped on end of input: %v", err)
	default:
	}

	cancel()
	require.NoError(t, <-errCh)
}

func TestPumpInputError(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	stream := struct {
		io.Reader
		io.Writer
	}{&failingReader{}, local}
	p := &Pump{Stream: stream, Port: &fakeTransmitter{txCh: make(chan byte, 1)}, Output: make(chan byte)}
	err := p.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "pump-in")
	require.Contains(t, err.Error(), "read input")
}

type failingReader struct{}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device gone")
}
