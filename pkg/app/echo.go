package app

import "context"

// Banners printed by Echo on start.
const (
	EchoBanner = "G2xx3 TimerA UART\r\n"
	EchoReady  = "READY.\r\n"
)

// Echo transmits back every received byte.
type Echo struct {
	Port Port
}

// Name implements Named.
func (a *Echo) Name() string {
	return "echo"
}

// Run implements Runnable.
func (a *Echo) Run(ctx context.Context) error {
	if err := Print(ctx, a.Port, EchoBanner+EchoReady); err != nil {
		return err
	}
	for {
		b, err := a.Port.ReceiveOne(ctx)
		if err != nil {
			return err
		}
		if err = a.Port.Transmit(ctx, b); err != nil {
			return err
		}
	}
}
