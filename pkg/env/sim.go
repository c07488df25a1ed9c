package env

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/robotalks/softuart/pkg/app"
	"github.com/robotalks/softuart/pkg/bridge/mqtt"
	"github.com/robotalks/softuart/pkg/bridge/serialport"
	"github.com/robotalks/softuart/pkg/bridge/stream"
	"github.com/robotalks/softuart/pkg/bridge/websocket"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/sim"
	"github.com/robotalks/softuart/pkg/uart"
)

// TerminalQueueSize is the number of terminal bytes queued for output.
const TerminalQueueSize = 4096

// Env is a bench running the configured program with all enabled
// bridges around it.
type Env struct {
	Config  *Config
	Program *app.Program
	Line    uart.Config
	Bench   *sim.Bench
	LEDs    *app.LEDPair

	runners []fx.Runnable
	closers []io.Closer
}

type console struct {
	io.Reader
	io.Writer
}

// NewEnv creates Env from config. Unless keepLine is set, the program's
// line parameters override line.
func (c *Config) NewEnv(line *uart.Config, keepLine bool) (e *Env, err error) {
	if err = c.Validate(); err != nil {
		return nil, err
	}
	e = &Env{Config: c, Line: *line, LEDs: &app.LEDPair{}}
	defer func() {
		if err != nil {
			e.Close()
			e = nil
		}
	}()
	if e.Program, err = c.Program(); err != nil {
		return
	}
	if !keepLine {
		e.Program.ApplyLine(&e.Line)
	}
	if e.Bench, err = sim.NewBench(&e.Line, e.Program.Options, c.SimSpeed); err != nil {
		return
	}
	glog.Infof("device %s: %s at %d baud, %d stop bits", c.DeviceID, e.Program.Name, e.Line.Baud, e.Line.StopBits)

	var leds app.LEDs = e.LEDs
	if c.LEDRed != "" {
		var pins *app.PinLEDs
		if pins, err = openPinLEDs(c.LEDRed, c.LEDGreen); err != nil {
			return
		}
		leds = app.MultiLEDs{e.LEDs, pins}
	}
	e.runners = append(e.runners, e.Bench.Driver,
		fx.NamedRun(e.Program.Name, e.Program.New(e.Bench.Board, leds)))

	if err = e.setupTerminal(); err != nil {
		return
	}
	if c.MQTTBrokerURL != "" {
		if err = e.setupMQTT(); err != nil {
			return
		}
	}
	if c.TraceAddr != "" {
		trace := websocket.NewTraceServer(c.TraceAddr, e.Bench.Terminal)
		e.observe(trace.Observer)
		e.runners = append(e.runners, trace)
	}
	if c.RecordPath != "" {
		var f *os.File
		if f, err = os.Create(c.RecordPath); err != nil {
			err = errors.Wrap(err, "create record file")
			return
		}
		e.closers = append(e.closers, f)
		rec := stream.NewRecorder(stream.New(f))
		e.observe(rec.Observer)
		e.runners = append(e.runners, rec)
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(line *uart.Config, keepLine bool) *Env {
	env, err := c.NewEnv(line, keepLine)
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// Runnables returns everything to run.
func (e *Env) Runnables() []fx.Runnable {
	return e.runners
}

// Run runs the env until ctx is done or a runnable fails.
func (e *Env) Run(ctx context.Context) error {
	return fx.NewRunnerWith(ctx).Go(e.runners...).Wait()
}

// Close releases opened files and ports.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs.Add(e.closers[i].Close())
	}
	e.closers = nil
	return errs.Aggregate()
}

func (e *Env) observe(fn func(device string) uart.FrameObserver) {
	e.Bench.Board.Observe(fn(e.Config.DeviceID + "/board"))
	e.Bench.Terminal.Observe(fn(e.Config.DeviceID + "/terminal"))
}

func (e *Env) setupTerminal() error {
	pump := &serialport.Pump{
		Port:   e.Bench.Terminal,
		Output: e.Bench.Terminal.Capture(TerminalQueueSize),
	}
	switch {
	case e.Config.SerialPort != "":
		port, err := serialport.Open(e.Config.SerialPort, &e.Line)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, port)
		pump.Stream = port
		pump.Closer = port
	case e.Config.Console != nil:
		pump.Stream = e.Config.Console
	default:
		pump.Stream = &console{Reader: os.Stdin, Writer: os.Stdout}
	}
	e.runners = append(e.runners, pump)
	return nil
}

func (e *Env) setupMQTT() error {
	q, err := mqtt.NewQueueForDevice(e.Config.MQTTBrokerURL, e.Config.DeviceID)
	if err != nil {
		return err
	}
	bridge := mqtt.NewBridge(q, e.Bench.Terminal, mqtt.MetaFrom(e.Config.DeviceID, e.Program.Name, &e.Line))
	e.Bench.Terminal.Observe(bridge)
	e.runners = append(e.runners, fx.NamedRun(bridge.Name(), fx.RunFunc(func(ctx context.Context) error {
		if err := q.Connect(); err != nil {
			return err
		}
		defer q.Close()
		return bridge.Run(ctx)
	})))
	return nil
}

func openPinLEDs(red, green string) (*app.PinLEDs, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "host init")
	}
	leds := &app.PinLEDs{}
	if leds.Red = gpioreg.ByName(red); leds.Red == nil {
		return nil, errors.Errorf("GPIO pin %s not found", red)
	}
	if leds.Green = gpioreg.ByName(green); leds.Green == nil {
		return nil, errors.Errorf("GPIO pin %s not found", green)
	}
	return leds, nil
}
