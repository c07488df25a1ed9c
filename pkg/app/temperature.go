package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"
)

// TemperatureStart is printed before the first reading.
const TemperatureStart = "Temperature Monitoring Start\r\n"

// DefaultTemperature is a raw sensor reading around room temperature.
const DefaultTemperature = 740

// TemperatureSource provides raw temperature readings.
type TemperatureSource interface {
	Temperature() (int, error)
}

// TemperatureFunc is the func form of TemperatureSource.
type TemperatureFunc func() (int, error)

// Temperature implements TemperatureSource.
func (f TemperatureFunc) Temperature() (int, error) {
	return f()
}

// RandomWalk is a simulated sensor drifting by at most one unit per reading.
type RandomWalk struct {
	value int
	rnd   *rand.Rand
	lock  sync.Mutex
}

// NewRandomWalk creates a RandomWalk starting at value. A zero seed is
// taken from the clock.
func NewRandomWalk(value int, seed int64) *RandomWalk {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomWalk{value: value, rnd: rand.New(rand.NewSource(seed))}
}

// Temperature implements TemperatureSource.
func (w *RandomWalk) Temperature() (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.value += w.rnd.Intn(3) - 1
	return w.value, nil
}

// Trend is the direction of a temperature change.
type Trend int

// Trends
const (
	TrendSteady Trend = iota
	TrendHigher
	TrendLower
)

// TrendOf compares the current reading with the previous one.
func TrendOf(previous, current int) Trend {
	switch {
	case current > previous:
		return TrendHigher
	case current < previous:
		return TrendLower
	}
	return TrendSteady
}

// Message is the line reported for the trend.
func (t Trend) Message() string {
	switch t {
	case TrendHigher:
		return "HI\r\n"
	case TrendLower:
		return "LO\r\n"
	}
	return "IN\r\n"
}

// LEDs is the indicator state for the trend.
func (t Trend) LEDs() LEDState {
	return LEDState{Red: t == TrendHigher, Green: t == TrendLower}
}

// TemperatureMonitor reports the temperature trend every Interval.
type TemperatureMonitor struct {
	Port     Port
	LEDs     LEDs
	Source   TemperatureSource
	Interval time.Duration
}

// Name implements Named.
func (a *TemperatureMonitor) Name() string {
	return "temp"
}

// Run implements Runnable.
func (a *TemperatureMonitor) Run(ctx context.Context) error {
	previous, err := a.Source.Temperature()
	if err != nil {
		return err
	}
	if err = Print(ctx, a.Port, TemperatureStart); err != nil {
		return err
	}
	interval := a.Interval
	if interval == 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		current, err := a.Source.Temperature()
		if err != nil {
			return err
		}
		trend := TrendOf(previous, current)
		glog.V(2).Infof("temperature %d -> %d", previous, current)
		st := trend.LEDs()
		if err = a.LEDs.Set(st.Red, st.Green); err != nil {
			return err
		}
		if err = Print(ctx, a.Port, trend.Message()); err != nil {
			return err
		}
		previous = current
	}
}
