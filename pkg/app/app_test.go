package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"

	"github.com/robotalks/softuart/pkg/sim"
	"github.com/robotalks/softuart/pkg/uart"
)

type fakePort struct {
	rxCh chan byte
	txCh chan byte
}

func newFakePort() *fakePort {
	return &fakePort{rxCh: make(chan byte), txCh: make(chan byte, 64)}
}

func (p *fakePort) Transmit(ctx context.Context, b byte) error {
	select {
	case p.txCh <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePort) ReceiveOne(ctx context.Context) (byte, error) {
	select {
	case b := <-p.rxCh:
		return b, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *fakePort) readLine(t *testing.T) string {
	var sb strings.Builder
	for {
		select {
		case b := <-p.txCh:
			sb.WriteByte(b)
			if b == '\n' {
				return sb.String()
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout reading line, got %q", sb.String())
		}
	}
}

type benchRun struct {
	bench  *sim.Bench
	output <-chan byte
	ctx    context.Context
	cancel context.CancelFunc
	errCh  chan error
}

func runOnBench(t *testing.T, name string, leds LEDs) *benchRun {
	prog, err := Lookup(name)
	require.NoError(t, err)
	conf := uart.NewConfig()
	prog.ApplyLine(conf)
	bench, err := sim.NewBench(conf, prog.Options, 0)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	r := &benchRun{
		bench:  bench,
		output: bench.Terminal.Capture(256),
		ctx:    ctx,
		cancel: cancel,
		errCh:  make(chan error, 2),
	}
	go func() { r.errCh <- bench.Driver.Run(ctx) }()
	go func() { r.errCh <- prog.New(bench.Board, leds).Run(ctx) }()
	return r
}

func (r *benchRun) stop() {
	r.cancel()
	<-r.errCh
	<-r.errCh
}

func (r *benchRun) readLine(t *testing.T) string {
	var sb strings.Builder
	for {
		select {
		case b := <-r.output:
			sb.WriteByte(b)
			if b == '\n' {
				return sb.String()
			}
		case <-r.ctx.Done():
			t.Fatalf("timeout reading line, got %q", sb.String())
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPrograms(t *testing.T) {
	require.Equal(t, []string{"duty", "echo", "led", "temp"}, Names())
	_, err := Lookup("none")
	require.Error(t, err)

	prog, err := Lookup("led")
	require.NoError(t, err)
	conf := uart.NewConfig()
	prog.ApplyLine(conf)
	require.Equal(t, uint(4800), conf.Baud)
	require.Equal(t, uint(2), conf.StopBits)
	require.True(t, prog.Options.DisableTx)
}

func TestLEDFor(t *testing.T) {
	testCases := []struct {
		b     byte
		state LEDState
	}{
		{'0', LEDState{Red: true}},
		{'1', LEDState{Green: true}},
		{'2', LEDState{}},
		{'a', LEDState{}},
		{0, LEDState{}},
	}
	for _, tc := range testCases {
		t.Run(string([]byte{tc.b}), func(t *testing.T) {
			require.Equal(t, tc.state, LEDFor(tc.b))
		})
	}
}

func TestEchoOnBench(t *testing.T) {
	r := runOnBench(t, "echo", &LEDPair{})
	defer r.stop()
	require.Equal(t, EchoBanner, r.readLine(t))
	require.Equal(t, EchoReady, r.readLine(t))
	for _, c := range []byte("go") {
		require.NoError(t, r.bench.Terminal.Transmit(r.ctx, c))
		require.Equal(t, c, <-r.output)
	}
}

func TestLEDIndicatorOnBench(t *testing.T) {
	leds := &LEDPair{}
	r := runOnBench(t, "led", leds)
	defer r.stop()
	expect := func(st LEDState, changes int) {
		waitFor(t, func() bool {
			s, n := leds.State()
			return s == st && n == changes
		})
	}
	require.NoError(t, r.bench.Terminal.Transmit(r.ctx, '0'))
	expect(LEDState{Red: true}, 1)
	require.NoError(t, r.bench.Terminal.Transmit(r.ctx, '1'))
	expect(LEDState{Green: true}, 2)
	require.NoError(t, r.bench.Terminal.Transmit(r.ctx, 'x'))
	expect(LEDState{}, 3)
}

func TestLEDIndicator(t *testing.T) {
	port := newFakePort()
	red, green := &gpiotest.Pin{N: "red"}, &gpiotest.Pin{N: "green"}
	leds := &LEDPair{}
	a := &LEDIndicator{Port: port, LEDs: MultiLEDs{leds, &PinLEDs{Red: red, Green: green}}}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	port.rxCh <- '1'
	port.rxCh <- '0'
	// the indicator is done with '0' once it takes the next byte.
	port.rxCh <- '0'
	st, changes := leds.State()
	require.Equal(t, LEDState{Red: true}, st)
	require.Equal(t, 2, changes)
	require.Equal(t, gpio.High, red.Read())
	require.Equal(t, gpio.Low, green.Read())
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestTrend(t *testing.T) {
	testCases := []struct {
		previous, current int
		trend             Trend
		message           string
		leds              LEDState
	}{
		{10, 11, TrendHigher, "HI\r\n", LEDState{Red: true}},
		{10, 9, TrendLower, "LO\r\n", LEDState{Green: true}},
		{10, 10, TrendSteady, "IN\r\n", LEDState{}},
	}
	for _, tc := range testCases {
		t.Run(tc.message[:2], func(t *testing.T) {
			trend := TrendOf(tc.previous, tc.current)
			require.Equal(t, tc.trend, trend)
			require.Equal(t, tc.message, trend.Message())
			require.Equal(t, tc.leds, trend.LEDs())
		})
	}
}

func TestTemperatureMonitor(t *testing.T) {
	readings := []int{700, 701, 701, 699}
	source := TemperatureFunc(func() (int, error) {
		v := readings[0]
		if len(readings) > 1 {
			readings = readings[1:]
		}
		return v, nil
	})
	port := newFakePort()
	leds := &LEDPair{}
	a := &TemperatureMonitor{Port: port, LEDs: leds, Source: source, Interval: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	require.Equal(t, TemperatureStart, port.readLine(t))
	require.Equal(t, "HI\r\n", port.readLine(t))
	require.Equal(t, "IN\r\n", port.readLine(t))
	require.Equal(t, "LO\r\n", port.readLine(t))
	require.Equal(t, "IN\r\n", port.readLine(t))
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestTemperatureOnBench(t *testing.T) {
	r := runOnBench(t, "temp", &LEDPair{})
	defer r.stop()
	require.Equal(t, TemperatureStart, r.readLine(t))
}

func TestRandomWalk(t *testing.T) {
	w := NewRandomWalk(100, 1)
	prev := 100
	for i := 0; i < 100; i++ {
		v, err := w.Temperature()
		require.NoError(t, err)
		require.True(t, v-prev <= 1 && prev-v <= 1)
		prev = v
	}
}

func TestDutyCycleReport(t *testing.T) {
	require.Equal(t, "85% TX: 110%\r\n", DutyCycleReport(85, 110))
	require.Equal(t, "05% TX: 09%\r\n", DutyCycleReport(5, 9))
}

func TestDutyCycleReporterOnBench(t *testing.T) {
	r := runOnBench(t, "duty", &LEDPair{})
	defer r.stop()
	require.NoError(t, r.bench.Terminal.Transmit(r.ctx, 'x'))
	require.Equal(t, "x RX: 85% TX: 110%\r\n", r.readLine(t))
}
