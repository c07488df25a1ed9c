package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/softuart/pkg/bitclock"
	"github.com/robotalks/softuart/pkg/uart"
)

func frameTicks(conf *uart.Config) int {
	return (conf.FrameBits() + 3) * int(conf.BitInterval())
}

func TestConnectAppliesCurrentLevel(t *testing.T) {
	a, b := bitclock.New(), bitclock.New()
	a.Atomic(func() {
		a.Channel(0).SetOutputMode(bitclock.OutputLevel)
		a.Channel(0).SetOutput(bitclock.High)
	})
	Connect(a, 0, b, 1)
	b.Step()
	require.Equal(t, bitclock.High, b.Channel(1).Input())
	a.Atomic(func() {
		a.Channel(0).SetOutput(bitclock.Low)
	})
	b.Step()
	require.Equal(t, bitclock.Low, b.Channel(1).Input())
}

func TestLoopback(t *testing.T) {
	conf := uart.NewConfig()
	timer := bitclock.New()
	Loopback(timer, 0, 1)
	s, err := uart.NewSession(timer, conf, uart.DefaultOptions)
	require.NoError(t, err)
	require.NoError(t, s.Transmit(context.Background(), 'L'))
	timer.Advance(frameTicks(conf))
	b, err := s.ReceiveOne(context.Background())
	require.NoError(t, err)
	require.Equal(t, byte('L'), b)
}

func TestBenchCrossWired(t *testing.T) {
	conf := uart.NewConfig()
	bench, err := NewBench(conf, uart.DefaultOptions, 0)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, bench.Terminal.Transmit(ctx, 'a'))
	require.NoError(t, bench.Board.Transmit(ctx, 'b'))
	bench.Driver.Advance(frameTicks(conf))
	require.Equal(t, uint64(frameTicks(conf)), bench.Driver.Ticks())

	b, err := bench.Board.ReceiveOne(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('a'), b)
	b, err = bench.Terminal.ReceiveOne(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('b'), b)
}

func TestBenchHalfDuplex(t *testing.T) {
	conf := &uart.Config{ClockHz: uart.DefaultClockHz, Baud: 4800, StopBits: 2}
	bench, err := NewBench(conf, uart.Options{RxChannel: 1, DisableTx: true}, 0)
	require.NoError(t, err)
	ctx := context.Background()
	require.Equal(t, uart.ErrNoTransmitter, bench.Board.Transmit(ctx, 'x'))
	require.NoError(t, bench.Terminal.Transmit(ctx, '1'))
	bench.Driver.Advance(frameTicks(conf))
	b, err := bench.Board.ReceiveOne(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('1'), b)
}

func TestDriverRunUnpaced(t *testing.T) {
	conf := uart.NewConfig()
	bench, err := NewBench(conf, uart.DefaultOptions, 0)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	runCtx, stop := context.WithCancel(ctx)
	go func() {
		errCh <- bench.Driver.Run(runCtx)
	}()

	stream := bench.Terminal.Stream(ctx)
	for _, c := range []byte("hi") {
		require.NoError(t, bench.Board.Transmit(ctx, c))
		buf := make([]byte, 1)
		_, err := stream.Read(buf)
		require.NoError(t, err)
		require.Equal(t, c, buf[0])
	}
	stop()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestDriverRunPaced(t *testing.T) {
	d := NewDriver(100000, 1)
	timer := bitclock.New()
	d.Add(timer)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, d.Run(ctx))
	ticks := d.Ticks()
	require.True(t, ticks > 1000, "ticks %d", ticks)
	require.True(t, ticks < 100000, "ticks %d", ticks)
	require.Equal(t, bitclock.Tick(ticks), timer.Now())
}
