package sim

import (
	"github.com/golang/glog"

	"github.com/robotalks/softuart/pkg/bitclock"
	"github.com/robotalks/softuart/pkg/uart"
)

// Endpoint is a timer with a Session on it.
type Endpoint struct {
	*uart.Session
	Options uart.Options
}

// NewEndpoint creates a Session on a new timer.
func NewEndpoint(conf *uart.Config, opts uart.Options) (*Endpoint, error) {
	s, err := uart.NewSession(bitclock.New(), conf, opts)
	if err != nil {
		return nil, err
	}
	return &Endpoint{Session: s, Options: opts}, nil
}

// Bench is the device board and the PC terminal cross-wired and driven in
// lockstep.
type Bench struct {
	Board    *Endpoint
	Terminal *Endpoint
	Driver   *Driver
}

// NewBench creates a Bench. opts applies to the board, the terminal is
// always full duplex.
func NewBench(conf *uart.Config, opts uart.Options, speed float64) (*Bench, error) {
	board, err := NewEndpoint(conf, opts)
	if err != nil {
		return nil, err
	}
	term, err := NewEndpoint(conf, uart.DefaultOptions)
	if err != nil {
		return nil, err
	}
	if !opts.DisableTx {
		Connect(board.Timer(), opts.TxChannel, term.Timer(), uart.DefaultOptions.RxChannel)
	}
	if !opts.DisableRx {
		Connect(term.Timer(), uart.DefaultOptions.TxChannel, board.Timer(), opts.RxChannel)
	}
	return &Bench{
		Board:    board,
		Terminal: term,
		Driver:   NewDriver(conf.ClockHz, speed).Add(board.Timer(), term.Timer()),
	}, nil
}

// Capture queues every received byte into a channel of the given size.
// Unlike ReceiveOne nothing is lost while the consumer keeps up with the
// queue. Bytes are dropped when the queue is full.
func (e *Endpoint) Capture(size int) <-chan byte {
	ch := make(chan byte, size)
	e.Observe(uart.FrameDoneFunc(func(rec uart.FrameRecord) {
		if rec.Direction != uart.DirRX {
			return
		}
		select {
		case ch <- rec.Value:
		default:
			glog.Warningf("capture queue full, dropped %#02x", rec.Value)
		}
	}))
	return ch
}
