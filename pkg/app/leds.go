package app

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/gpio"
)

// LEDs drives the red and green indicator LEDs.
type LEDs interface {
	Set(red, green bool) error
}

// LEDState is a combination of both LEDs.
type LEDState struct {
	Red   bool
	Green bool
}

// String implements fmt.Stringer.
func (s LEDState) String() string {
	return fmt.Sprintf("red=%s green=%s", onOff(s.Red), onOff(s.Green))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// LEDPair keeps the LED state in memory.
type LEDPair struct {
	state   LEDState
	changes int
	lock    sync.Mutex
}

// Set implements LEDs.
func (p *LEDPair) Set(red, green bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.state.Red != red || p.state.Green != green {
		p.changes++
	}
	p.state = LEDState{Red: red, Green: green}
	return nil
}

// State returns the current LED state and how many times it changed.
func (p *LEDPair) State() (LEDState, int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state, p.changes
}

// PinLEDs drives LEDs on GPIO pins, active high.
type PinLEDs struct {
	Red   gpio.PinOut
	Green gpio.PinOut
}

// Set implements LEDs.
func (p *PinLEDs) Set(red, green bool) error {
	if err := p.Red.Out(gpio.Level(red)); err != nil {
		return err
	}
	return p.Green.Out(gpio.Level(green))
}

// MultiLEDs drives all LEDs.
type MultiLEDs []LEDs

// Set implements LEDs.
func (m MultiLEDs) Set(red, green bool) error {
	for _, leds := range m {
		if err := leds.Set(red, green); err != nil {
			return err
		}
	}
	return nil
}
