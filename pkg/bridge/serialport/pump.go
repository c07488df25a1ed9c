// Package serialport bridges a session to a host byte stream, a serial
// device or the console.
package serialport

import (
	"context"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/tarm/serial"

	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/uart"
)

// Open opens a host serial port with the same line parameters as conf.
func Open(name string, conf *uart.Config) (io.ReadWriteCloser, error) {
	stopBits := serial.Stop1
	if conf.StopBits == 2 {
		stopBits = serial.Stop2
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:     name,
		Baud:     int(conf.Baud),
		Size:     uart.DataBits,
		StopBits: stopBits,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", name)
	}
	glog.Infof("serial port %s opened at %d baud", name, conf.Baud)
	return port, nil
}

// Transmitter accepts bytes to send over the line.
type Transmitter interface {
	Transmit(ctx context.Context, b byte) error
}

// Pump copies bytes read from a stream to a Transmitter, and bytes from
// Output to the stream. End of input only stops the input side: output
// keeps flowing until the context is done, so piped input sees its echo.
type Pump struct {
	Stream io.ReadWriter
	// Closer unblocks a pending Read on cancellation, optional.
	// Without it a blocked Read is abandoned.
	Closer io.Closer
	Port   Transmitter
	Output <-chan byte
}

// Name implements Named.
func (p *Pump) Name() string {
	return "pump"
}

// Run implements Runnable.
func (p *Pump) Run(ctx context.Context) error {
	return fx.NewRunnerWith(ctx).
		Go(fx.NamedRun("pump-in", fx.RunFunc(p.pumpIn))).
		Go(fx.NamedRun("pump-out", fx.RunFunc(p.pumpOut))).
		Wait()
}

func (p *Pump) pumpIn(ctx context.Context) error {
	read := func() error {
		buf := make([]byte, 64)
		for {
			n, err := p.Stream.Read(buf)
			for _, b := range buf[:n] {
				if err := p.Port.Transmit(ctx, b); err != nil {
					return err
				}
			}
			switch {
			case err == io.EOF:
				glog.Info("input closed")
				<-ctx.Done()
				return ctx.Err()
			case err != nil:
				return errors.Wrap(err, "read input")
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	if p.Closer != nil {
		return fx.RunWithContextCloser(ctx, p.Closer, read)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- read()
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (p *Pump) pumpOut(ctx context.Context) error {
	buf := make([]byte, 1, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-p.Output:
			buf = append(buf[:0], b)
			// collect what's already queued.
			for more := true; more && len(buf) < cap(buf); {
				select {
				case b = <-p.Output:
					buf = append(buf, b)
				default:
					more = false
				}
			}
			if _, err := p.Stream.Write(buf); err != nil {
				return errors.Wrap(err, "write output")
			}
		}
	}
}
