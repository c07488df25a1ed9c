package uart

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/softuart/pkg/bitclock"
)

// TxState is the state of the transmit session.
type TxState int

// Transmit states
const (
	TxIdle TxState = iota
	TxSending
)

// TxStatus is a snapshot of the transmit session.
type TxStatus struct {
	State         TxState
	BitsRemaining int
	Frame         TxFrame
}

// Transmitter shifts frames out of a compare channel output.
type Transmitter struct {
	timer     *bitclock.Timer
	ch        *bitclock.Channel
	interval  uint16
	stopBits  uint
	frameBits int

	// owned by the handler once a frame is armed.
	state     TxState
	bitsLeft  int
	frame     TxFrame
	value     byte
	sample    DutyCycleSample
	last      DutyCycleSample
	observers []FrameObserver

	// holds a token while idle.
	idleCh chan struct{}
}

// NewTransmitter creates a Transmitter on channel ch of t.
// The output is set to the idle level right away.
func NewTransmitter(t *bitclock.Timer, ch int, conf *Config) *Transmitter {
	tx := &Transmitter{
		timer:     t,
		ch:        t.Channel(ch),
		interval:  conf.BitInterval(),
		stopBits:  conf.StopBits,
		frameBits: conf.FrameBits(),
		idleCh:    make(chan struct{}, 1),
	}
	tx.idleCh <- struct{}{}
	t.Atomic(func() {
		tx.ch.SetHandler(tx)
		tx.ch.SetOutput(bitclock.High)
		tx.ch.SetOutputMode(bitclock.OutputLevel)
	})
	return tx
}

// Transmit sends one byte. It blocks while the previous frame is still
// being shifted out, so a frame in flight is never disturbed.
// Once the frame is armed it runs to completion; ctx only bounds the wait.
func (tx *Transmitter) Transmit(ctx context.Context, b byte) error {
	select {
	case <-tx.idleCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	tx.timer.Atomic(func() {
		now := tx.timer.Count()
		tx.frame, tx.bitsLeft, tx.value = NewTxFrame(b, tx.stopBits), tx.frameBits, b
		tx.state = TxSending
		tx.sample = DutyCycleSample{Start: now, Interval: tx.interval, Bits: tx.frameBits}
		// the first match drives the idle level, the start bit follows.
		tx.ch.SetOutputMode(bitclock.OutputSet)
		tx.ch.Arm(bitclock.ModeCompare, now.Add(tx.interval))
	})
	return nil
}

// Idle indicates no frame is in flight.
func (tx *Transmitter) Idle() bool {
	return tx.Status().State == TxIdle
}

// Status returns a snapshot of the session.
func (tx *Transmitter) Status() (st TxStatus) {
	tx.timer.Atomic(func() {
		st = TxStatus{State: tx.state, BitsRemaining: tx.bitsLeft, Frame: tx.frame}
	})
	return
}

// Sample returns the duty-cycle sample of the last completed frame.
func (tx *Transmitter) Sample() (s DutyCycleSample) {
	tx.timer.Atomic(func() {
		s = tx.last
	})
	return
}

// HandleEvent implements bitclock.Handler.
func (tx *Transmitter) HandleEvent(c *bitclock.Channel, ev bitclock.Event) {
	c.RearmRelative(tx.interval)
	if tx.bitsLeft == 0 {
		c.Disarm()
		tx.state = TxIdle
		tx.sample.End = ev.Tick
		tx.last = tx.sample
		rec := FrameRecord{Direction: DirTX, Value: tx.value, Sample: tx.sample}
		if glog.V(2) {
			glog.Infof("TX %#02x done at %d", tx.value, ev.Tick)
		}
		for _, o := range tx.observers {
			o.FrameDone(rec)
		}
		select {
		case tx.idleCh <- struct{}{}:
		default:
		}
		return
	}
	if tx.frame.Bit() == bitclock.High {
		c.SetOutputMode(bitclock.OutputSet)
	} else {
		c.SetOutputMode(bitclock.OutputReset)
	}
	if glog.V(4) {
		glog.Infof("TX bit %d=%s at %d", tx.frameBits-tx.bitsLeft, tx.frame.Bit(), ev.Tick)
	}
	tx.frame = tx.frame.Next()
	tx.bitsLeft--
}

func (tx *Transmitter) observe(o FrameObserver) {
	tx.observers = append(tx.observers, o)
}
