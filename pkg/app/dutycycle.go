package app

import (
	"context"
	"fmt"
)

// DutyCycleReporter echoes every received byte and reports how long the
// engines were busy with the last frames, relative to a frame time.
type DutyCycleReporter struct {
	Device Device
}

// Name implements Named.
func (a *DutyCycleReporter) Name() string {
	return "duty"
}

// Run implements Runnable.
func (a *DutyCycleReporter) Run(ctx context.Context) error {
	for {
		b, err := a.Device.ReceiveOne(ctx)
		if err != nil {
			return err
		}
		if err = a.Device.Transmit(ctx, b); err != nil {
			return err
		}
		if err = Print(ctx, a.Device, " RX: "); err != nil {
			return err
		}
		tx, rx := a.Device.DutyCycle()
		if err = Print(ctx, a.Device, DutyCycleReport(rx.Percent(), tx.Percent())); err != nil {
			return err
		}
	}
}

// DutyCycleReport formats the report after the " RX: " prefix.
func DutyCycleReport(rx, tx uint32) string {
	return fmt.Sprintf("%02d%% TX: %02d%%\r\n", rx, tx)
}
