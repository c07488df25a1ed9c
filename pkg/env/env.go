// Package env configures the process environment around a simulation.
package env

import (
	"flag"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/app"
)

// Config provides the options of the simulation environment.
type Config struct {
	// DeviceID names the simulated board on external surfaces.
	DeviceID string
	// App is the program run on the board.
	App string
	// SimSpeed scales simulated time, 0 runs as fast as possible.
	SimSpeed float64

	// MQTTBrokerURL enables the MQTT bridge when set.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
	// TraceAddr enables the websocket trace server when set.
	TraceAddr string
	// RecordPath enables the frame recorder when set.
	RecordPath string
	// SerialPort bridges the terminal to a host serial port instead of
	// the console.
	SerialPort string

	// LEDRed and LEDGreen are GPIO pin names driving real LEDs.
	LEDRed   string
	LEDGreen string

	// Console replaces stdin/stdout as the terminal stream.
	Console io.ReadWriter
}

var defaultConfig = Config{
	App:      "echo",
	SimSpeed: 1,
}

func init() {
	if val := os.Getenv("SOFTUART_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("SOFTUART_DEVICE_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
	if val := os.Getenv("SOFTUART_SIM_SPEED"); val != "" {
		if speed, err := strconv.ParseFloat(val, 64); err == nil {
			defaultConfig.SimSpeed = speed
		}
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.DeviceID, "device-id", defaultConfig.DeviceID, "Device ID, defaults to machine ID")
	flag.StringVar(&defaultConfig.App, "app", defaultConfig.App, "Program on the board")
	flag.Float64Var(&defaultConfig.SimSpeed, "sim-speed", defaultConfig.SimSpeed, "Simulation speed, 0 for unpaced")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.TraceAddr, "trace-addr", defaultConfig.TraceAddr, "Listen address of websocket trace")
	flag.StringVar(&defaultConfig.RecordPath, "record", defaultConfig.RecordPath, "Record frames to file")
	flag.StringVar(&defaultConfig.SerialPort, "serial", defaultConfig.SerialPort, "Bridge terminal to host serial port")
	flag.StringVar(&defaultConfig.LEDRed, "led-red", defaultConfig.LEDRed, "GPIO pin of red LED")
	flag.StringVar(&defaultConfig.LEDGreen, "led-green", defaultConfig.LEDGreen, "GPIO pin of green LED")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Program looks up the configured program.
func (c *Config) Program() (*app.Program, error) {
	return app.Lookup(c.App)
}

// Validate checks the config and fills the device ID.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		c.DeviceID = MachineID()
	}
	if c.SimSpeed < 0 {
		return errors.Errorf("invalid sim speed %v", c.SimSpeed)
	}
	if (c.LEDRed == "") != (c.LEDGreen == "") {
		return errors.New("both -led-red and -led-green are required")
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	return nil
}

// MustValidate validates the config and fails on error.
func (c *Config) MustValidate() *Config {
	if err := c.Validate(); err != nil {
		log.Fatalln(err)
	}
	return c
}
