package sh

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/app"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/sim"
	"github.com/robotalks/softuart/pkg/uart"
)

// OutputQueueSize is the number of terminal bytes queued before dropping.
const OutputQueueSize = 4096

// SimRun is a running bench with a program on the board.
type SimRun struct {
	Program *app.Program
	Line    uart.Config
	Bench   *sim.Bench
	LEDs    *app.LEDPair

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
	err    error

	outLock sync.Mutex
	output  []byte
	outCh   chan struct{}
}

// StartSim starts prog on a new bench. Unless keepLine is set, the
// program's line parameters override line.
func StartSim(prog *app.Program, line *uart.Config, speed float64, keepLine bool) (*SimRun, error) {
	conf := *line
	if !keepLine {
		prog.ApplyLine(&conf)
	}
	bench, err := sim.NewBench(&conf, prog.Options, speed)
	if err != nil {
		return nil, err
	}
	r := &SimRun{
		Program: prog,
		Line:    conf,
		Bench:   bench,
		LEDs:    &app.LEDPair{},
		doneCh:  make(chan struct{}),
		outCh:   make(chan struct{}, 1),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	output := bench.Terminal.Capture(OutputQueueSize)
	runner := fx.NewRunnerWith(r.ctx).
		Go(bench.Driver).
		Go(fx.NamedRun(prog.Name, prog.New(bench.Board, r.LEDs))).
		Go(fx.NamedRun("output", fx.RunFunc(func(ctx context.Context) error {
			r.collect(ctx, output)
			return ctx.Err()
		})))
	go func() {
		r.err = runner.Wait()
		if r.err != nil {
			glog.Errorf("simulation stopped: %v", r.err)
		}
		close(r.doneCh)
	}()
	return r, nil
}

// Stop stops the simulation and waits for it.
func (r *SimRun) Stop() error {
	r.cancel()
	<-r.doneCh
	return r.err
}

// Send transmits data from the terminal.
func (r *SimRun) Send(data []byte) error {
	for _, b := range data {
		if err := r.Bench.Terminal.Transmit(r.ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// Output takes the bytes received by the terminal so far, waiting up to
// wait for the first one.
func (r *SimRun) Output(wait time.Duration) []byte {
	deadline := time.After(wait)
	for {
		r.outLock.Lock()
		out := r.output
		r.output = nil
		r.outLock.Unlock()
		if len(out) > 0 {
			return out
		}
		select {
		case <-r.outCh:
		case <-deadline:
			return nil
		case <-r.doneCh:
			return nil
		}
	}
}

// Advance steps the bench n ticks beyond its pace.
func (r *SimRun) Advance(n int) {
	r.Bench.Driver.Advance(n)
}

func (r *SimRun) collect(ctx context.Context, output <-chan byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-output:
			r.outLock.Lock()
			r.output = append(r.output, b)
			r.outLock.Unlock()
			select {
			case r.outCh <- struct{}{}:
			default:
			}
		}
	}
}

// EndpointStats summarizes one side of the line.
type EndpointStats struct {
	Received uint32 `json:"received"`
	TxDuty   uint32 `json:"tx_duty"`
	RxDuty   uint32 `json:"rx_duty"`
	TxIdle   bool   `json:"tx_idle"`
}

// Stats summarizes the simulation.
type Stats struct {
	Program  string        `json:"program"`
	Baud     uint          `json:"baud"`
	StopBits uint          `json:"stop_bits"`
	Ticks    uint64        `json:"ticks"`
	Board    EndpointStats `json:"board"`
	Terminal EndpointStats `json:"terminal"`
}

func endpointStats(s *uart.Session) EndpointStats {
	tx, rx := s.DutyCycle()
	st := EndpointStats{TxDuty: tx.Percent(), RxDuty: rx.Percent(), TxIdle: s.TxIdle()}
	if s.Receiver() != nil {
		st.Received = s.Received()
	}
	return st
}

// Stats returns the current statistics.
func (r *SimRun) Stats() Stats {
	return Stats{
		Program:  r.Program.Name,
		Baud:     r.Line.Baud,
		StopBits: r.Line.StopBits,
		Ticks:    r.Bench.Driver.Ticks(),
		Board:    endpointStats(r.Bench.Board.Session),
		Terminal: endpointStats(r.Bench.Terminal.Session),
	}
}

// ParseText parses args joined by spaces, with Go escapes like \r\n.
func ParseText(args []string) ([]byte, error) {
	text := strings.Join(args, " ")
	unquoted, err := strconv.Unquote(`"` + strings.Replace(text, `"`, `\"`, -1) + `"`)
	if err != nil {
		return nil, errors.Wrap(err, "invalid escape")
	}
	return []byte(unquoted), nil
}

// ParseHex parses each arg as a hex byte.
func ParseHex(args []string) ([]byte, error) {
	data := make([]byte, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(arg), "0x"), 16, 8)
		if err != nil {
			return nil, errors.Errorf("invalid byte %q", arg)
		}
		data = append(data, byte(v))
	}
	return data, nil
}
