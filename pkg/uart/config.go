package uart

import (
	"flag"

	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/bitclock"
)

// DataBits is the number of data bits per frame.
const DataBits = 8

// Config defines the fixed line parameters of a Session.
type Config struct {
	// ClockHz is the counter frequency in ticks per second.
	ClockHz uint
	// Baud is the line rate in bits per second.
	Baud uint
	// StopBits is 1 or 2.
	StopBits uint
}

// Defaults
const (
	DefaultClockHz  uint = 1000000
	DefaultBaud     uint = 9600
	DefaultStopBits uint = 1
)

var defaultConfig = Config{
	ClockHz:  DefaultClockHz,
	Baud:     DefaultBaud,
	StopBits: DefaultStopBits,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.UintVar(&defaultConfig.ClockHz, "clock-hz", defaultConfig.ClockHz, "Timer clock frequency (ticks/s).")
	flag.UintVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Baud rate.")
	flag.UintVar(&defaultConfig.StopBits, "stop-bits", defaultConfig.StopBits, "Stop bits per frame, 1 or 2.")
}

// LineFlagsSet reports whether -baud or -stop-bits was given on the
// command line. Programs keep an explicitly configured line.
func LineFlagsSet() (set bool) {
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "baud" || f.Name == "stop-bits" {
			set = true
		}
	})
	return
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the line parameters fit the counter.
func (c *Config) Validate() error {
	if c.Baud == 0 {
		return errors.New("baud rate must be positive")
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return errors.Errorf("invalid stop bits %d, must be 1 or 2", c.StopBits)
	}
	interval := c.ClockHz / c.Baud
	if interval < 2 {
		return errors.Errorf("clock %d Hz too slow for %d baud", c.ClockHz, c.Baud)
	}
	// the longest wait between two events is the 1.5 bit delay after a
	// start edge.
	if interval+interval/2 > bitclock.MaxDelta {
		return errors.Errorf("bit interval %d ticks exceeds counter range", interval)
	}
	return nil
}

// BitInterval is the number of ticks per bit, truncated.
func (c *Config) BitInterval() uint16 {
	return uint16(c.ClockHz / c.Baud)
}

// HalfBitInterval is the number of ticks in half a bit, truncated.
func (c *Config) HalfBitInterval() uint16 {
	return uint16(c.ClockHz / (c.Baud * 2))
}

// FrameBits is the total bits of a frame: start, data and stop bits.
func (c *Config) FrameBits() int {
	return 1 + DataBits + int(c.StopBits)
}

// FrameTicks is the nominal duration of a frame.
func (c *Config) FrameTicks() uint32 {
	return uint32(c.BitInterval()) * uint32(c.FrameBits())
}
