package app

import (
	"context"

	"github.com/golang/glog"
)

// LEDFor maps a received byte to the LEDs: '0' lights red, '1' lights
// green, anything else turns both off.
func LEDFor(b byte) LEDState {
	switch b {
	case '0':
		return LEDState{Red: true}
	case '1':
		return LEDState{Green: true}
	}
	return LEDState{}
}

// LEDIndicator lights the LEDs from received digits.
type LEDIndicator struct {
	Port Port
	LEDs LEDs
}

// Name implements Named.
func (a *LEDIndicator) Name() string {
	return "led"
}

// Run implements Runnable.
func (a *LEDIndicator) Run(ctx context.Context) error {
	if err := a.LEDs.Set(false, false); err != nil {
		return err
	}
	for {
		b, err := a.Port.ReceiveOne(ctx)
		if err != nil {
			return err
		}
		st := LEDFor(b)
		glog.V(2).Infof("LED %q: %s", b, st)
		if err = a.LEDs.Set(st.Red, st.Green); err != nil {
			return err
		}
	}
}
