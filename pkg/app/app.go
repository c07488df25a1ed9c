// Package app contains the programs run on top of a UART session.
package app

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/uart"
)

// Port is the byte level view of a session used by programs.
type Port interface {
	Transmit(ctx context.Context, b byte) error
	ReceiveOne(ctx context.Context) (byte, error)
}

// DutyCycler reports the duty-cycle samples of the last frames.
type DutyCycler interface {
	DutyCycle() (tx, rx uart.DutyCycleSample)
}

// Device is what a program runs on.
type Device interface {
	Port
	DutyCycler
}

// Print transmits str byte by byte.
func Print(ctx context.Context, port Port, str string) error {
	for i := 0; i < len(str); i++ {
		if err := port.Transmit(ctx, str[i]); err != nil {
			return err
		}
	}
	return nil
}

// Program describes a runnable program and the line it expects.
type Program struct {
	Name        string
	Description string
	Options     uart.Options
	// Baud and StopBits override the line config when not zero.
	Baud     uint
	StopBits uint
	New      func(dev Device, leds LEDs) fx.Runnable
}

// ApplyLine overrides line parameters the program depends on.
func (p *Program) ApplyLine(conf *uart.Config) {
	if p.Baud != 0 {
		conf.Baud = p.Baud
	}
	if p.StopBits != 0 {
		conf.StopBits = p.StopBits
	}
}

var programs = map[string]*Program{}

// Register registers a program.
func Register(p *Program) *Program {
	if _, exist := programs[p.Name]; exist {
		panic("program " + p.Name + " already registered")
	}
	programs[p.Name] = p
	return p
}

// Lookup finds a program by name.
func Lookup(name string) (*Program, error) {
	if p := programs[name]; p != nil {
		return p, nil
	}
	return nil, errors.Errorf("unknown program %q", name)
}

// Names returns sorted names of registered programs.
func Names() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(&Program{
		Name:        "echo",
		Description: "Echo every received byte",
		Options:     uart.DefaultOptions,
		New: func(dev Device, _ LEDs) fx.Runnable {
			return &Echo{Port: dev}
		},
	})
	Register(&Program{
		Name:        "led",
		Description: "Light LEDs from received digits",
		Options:     uart.Options{RxChannel: 1, DisableTx: true},
		Baud:        4800,
		StopBits:    2,
		New: func(dev Device, leds LEDs) fx.Runnable {
			return &LEDIndicator{Port: dev, LEDs: leds}
		},
	})
	Register(&Program{
		Name:        "temp",
		Description: "Report temperature trend every second",
		Options:     uart.Options{TxChannel: 0, DisableRx: true},
		Baud:        4800,
		New: func(dev Device, leds LEDs) fx.Runnable {
			return &TemperatureMonitor{Port: dev, LEDs: leds, Source: NewRandomWalk(DefaultTemperature, 0)}
		},
	})
	Register(&Program{
		Name:        "duty",
		Description: "Echo and report frame duty cycles",
		Options:     uart.DefaultOptions,
		New: func(dev Device, _ LEDs) fx.Runnable {
			return &DutyCycleReporter{Device: dev}
		},
	})
}
