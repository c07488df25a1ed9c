package uart

import (
	"context"

	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/bitclock"
)

var (
	// ErrNoTransmitter indicates the session is receive only.
	ErrNoTransmitter = errors.New("session has no transmitter")
	// ErrNoReceiver indicates the session is transmit only.
	ErrNoReceiver = errors.New("session has no receiver")
)

// Options selects the channels used by a Session.
type Options struct {
	TxChannel int
	RxChannel int
	// DisableTx leaves the transmit channel free (receive-only session).
	DisableTx bool
	// DisableRx leaves the receive channel free (transmit-only session).
	DisableRx bool
}

// DefaultOptions transmits on channel 0 and receives on channel 1.
var DefaultOptions = Options{TxChannel: 0, RxChannel: 1}

// Validate checks the enabled channels exist on t and are distinct.
// Each channel is owned by exactly one engine.
func (o Options) Validate(t *bitclock.Timer) error {
	n := t.Channels()
	if !o.DisableTx && (o.TxChannel < 0 || o.TxChannel >= n) {
		return errors.Errorf("transmit channel %d out of range [0, %d)", o.TxChannel, n)
	}
	if !o.DisableRx && (o.RxChannel < 0 || o.RxChannel >= n) {
		return errors.Errorf("receive channel %d out of range [0, %d)", o.RxChannel, n)
	}
	if !o.DisableTx && !o.DisableRx && o.TxChannel == o.RxChannel {
		return errors.Errorf("transmit and receive share channel %d", o.TxChannel)
	}
	return nil
}

// Session coordinates the foreground with both engines: it serializes
// transmits and hands completed bytes to the waiting consumer.
type Session struct {
	Config Config

	timer  *bitclock.Timer
	tx     *Transmitter
	rx     *Receiver
	buffer *RxBuffer
}

// NewSession creates a Session on t. conf and opts must be valid and the
// timer's clock stable before any byte is exchanged.
func NewSession(t *bitclock.Timer, conf *Config, opts Options) (*Session, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(t); err != nil {
		return nil, err
	}
	s := &Session{Config: *conf, timer: t, buffer: NewRxBuffer()}
	if !opts.DisableTx {
		s.tx = NewTransmitter(t, opts.TxChannel, conf)
	}
	if !opts.DisableRx {
		s.rx = NewReceiver(t, opts.RxChannel, conf, s.buffer)
	}
	return s, nil
}

// Timer returns the timebase.
func (s *Session) Timer() *bitclock.Timer {
	return s.timer
}

// Transmitter returns the transmit engine, nil when disabled.
func (s *Session) Transmitter() *Transmitter {
	return s.tx
}

// Receiver returns the receive engine, nil when disabled.
func (s *Session) Receiver() *Receiver {
	return s.rx
}

// Observe registers an observer of completed frames in both directions.
func (s *Session) Observe(o FrameObserver) *Session {
	s.timer.Atomic(func() {
		if s.tx != nil {
			s.tx.observe(o)
		}
		if s.rx != nil {
			s.rx.observe(o)
		}
	})
	return s
}

// Transmit sends one byte, waiting for the previous one to complete.
func (s *Session) Transmit(ctx context.Context, b byte) error {
	if s.tx == nil {
		return ErrNoTransmitter
	}
	return s.tx.Transmit(ctx, b)
}

// Print transmits str byte by byte.
func (s *Session) Print(ctx context.Context, str string) error {
	for i := 0; i < len(str); i++ {
		if err := s.Transmit(ctx, str[i]); err != nil {
			return err
		}
	}
	return nil
}

// TxIdle indicates no frame is being transmitted.
func (s *Session) TxIdle() bool {
	return s.tx == nil || s.tx.Idle()
}

// ReceiveOne suspends the caller until a frame completes and returns the
// buffered byte. A completion since the previous call wakes it at once,
// and it always returns the latest byte: unconsumed bytes are lost.
func (s *Session) ReceiveOne(ctx context.Context) (byte, error) {
	if s.rx == nil {
		return 0, ErrNoReceiver
	}
	select {
	case <-s.buffer.Ready():
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	var b byte
	s.timer.Atomic(func() {
		b, _ = s.buffer.Load()
	})
	return b, nil
}

// Received returns the number of frames received so far.
func (s *Session) Received() (n uint32) {
	s.timer.Atomic(func() {
		_, n = s.buffer.Load()
	})
	return
}

// DutyCycle returns the samples of the last transmitted and received frames.
func (s *Session) DutyCycle() (tx, rx DutyCycleSample) {
	if s.tx != nil {
		tx = s.tx.Sample()
	}
	if s.rx != nil {
		rx = s.rx.Sample()
	}
	return
}

// Stream adapts the session to io.ReadWriter, using ctx for all waits.
func (s *Session) Stream(ctx context.Context) *Stream {
	return &Stream{ctx: ctx, session: s}
}

// Stream is an io.ReadWriter over a Session.
type Stream struct {
	ctx     context.Context
	session *Session
}

// Read reads at most one byte, the next one received.
func (r *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := r.session.ReceiveOne(r.ctx)
	if err != nil {
		return 0, err
	}
	p[0] = b
	return 1, nil
}

// Write transmits p.
func (r *Stream) Write(p []byte) (int, error) {
	for n, b := range p {
		if err := r.session.Transmit(r.ctx, b); err != nil {
			return n, err
		}
	}
	return len(p), nil
}
