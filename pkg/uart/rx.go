package uart

import (
	"github.com/golang/glog"

	"github.com/robotalks/softuart/pkg/bitclock"
)

// RxState is the state of the receive session.
type RxState int

// Receive states
const (
	RxAwaitingStart RxState = iota
	RxSampling
)

// RxBuffer holds the last received byte. A new completion overwrites it
// whether or not it was consumed.
type RxBuffer struct {
	value   byte
	seq     uint32
	readyCh chan struct{}
}

// NewRxBuffer creates an empty buffer.
func NewRxBuffer() *RxBuffer {
	return &RxBuffer{readyCh: make(chan struct{}, 1)}
}

// Load returns the buffered byte and the number of completions so far.
// Call it inside Timer.Atomic.
func (b *RxBuffer) Load() (byte, uint32) {
	return b.value, b.seq
}

// Ready is signaled after a completion. Signals are latched, not queued:
// several completions before a wait leave a single signal.
func (b *RxBuffer) Ready() <-chan struct{} {
	return b.readyCh
}

func (b *RxBuffer) complete(v byte) {
	b.value = v
	b.seq++
	select {
	case b.readyCh <- struct{}{}:
	default:
	}
}

// Receiver detects start bits on a capture channel and samples the data
// bits in the middle of each bit.
type Receiver struct {
	timer    *bitclock.Timer
	ch       *bitclock.Channel
	interval uint16
	half     uint16
	buffer   *RxBuffer

	// owned by the handler.
	state     RxState
	bitsLeft  int
	acc       byte
	sample    DutyCycleSample
	last      DutyCycleSample
	frameBits int
	observers []FrameObserver
}

// NewReceiver creates a Receiver on channel ch of t, delivering into buf.
// It starts watching for a start bit right away.
func NewReceiver(t *bitclock.Timer, ch int, conf *Config, buf *RxBuffer) *Receiver {
	rx := &Receiver{
		timer:     t,
		ch:        t.Channel(ch),
		interval:  conf.BitInterval(),
		half:      conf.HalfBitInterval(),
		buffer:    buf,
		frameBits: conf.FrameBits(),
	}
	t.Atomic(func() {
		rx.ch.SetHandler(rx)
		rx.ch.WatchEdge(bitclock.EdgeFalling)
		rx.ch.Arm(bitclock.ModeCapture, t.Count())
	})
	return rx
}

// State returns the current state.
func (rx *Receiver) State() (st RxState) {
	rx.timer.Atomic(func() {
		st = rx.state
	})
	return
}

// Sample returns the duty-cycle sample of the last completed frame.
func (rx *Receiver) Sample() (s DutyCycleSample) {
	rx.timer.Atomic(func() {
		s = rx.last
	})
	return
}

// HandleEvent implements bitclock.Handler.
func (rx *Receiver) HandleEvent(c *bitclock.Channel, ev bitclock.Event) {
	c.RearmRelative(rx.interval)
	if c.Mode() == bitclock.ModeCapture {
		// start edge: sample the middle of D0, 1.5 bits after the edge.
		c.SetMode(bitclock.ModeCompare)
		c.RearmRelative(rx.half)
		rx.state, rx.bitsLeft, rx.acc = RxSampling, DataBits, 0
		rx.sample = DutyCycleSample{Start: ev.Tick, Interval: rx.interval, Bits: rx.frameBits}
		if glog.V(4) {
			glog.Infof("RX start at %d", ev.Tick)
		}
		return
	}
	rx.acc >>= 1
	if c.SyncedInput() == bitclock.High {
		rx.acc |= 0x80
	}
	rx.bitsLeft--
	if rx.bitsLeft > 0 {
		return
	}
	// stop bits are not checked.
	c.SetMode(bitclock.ModeCapture)
	rx.state = RxAwaitingStart
	rx.sample.End = ev.Tick
	rx.last = rx.sample
	rx.buffer.complete(rx.acc)
	if glog.V(2) {
		glog.Infof("RX %#02x done at %d", rx.acc, ev.Tick)
	}
	rec := FrameRecord{Direction: DirRX, Value: rx.acc, Sample: rx.sample}
	for _, o := range rx.observers {
		o.FrameDone(rec)
	}
}

func (rx *Receiver) observe(o FrameObserver) {
	rx.observers = append(rx.observers, o)
}
