package sim

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/softuart/pkg/framework"
)

// Defaults
const (
	DefaultInterval = 10 * time.Millisecond
	// BatchTicks is the number of ticks stepped between context checks
	// when running unpaced.
	BatchTicks = 4096
)

// Driver steps any number of timers in lockstep.
type Driver struct {
	// ClockHz is the tick rate of all timers.
	ClockHz uint
	// Speed scales simulated time against wall clock, 1 is real time.
	// Zero or negative runs as fast as possible.
	Speed float64
	// Interval is the pacing granularity.
	Interval time.Duration

	steppers []fx.Stepper
	ticks    uint64
	lock     sync.Mutex
}

// NewDriver creates a Driver.
func NewDriver(clockHz uint, speed float64) *Driver {
	return &Driver{ClockHz: clockHz, Speed: speed, Interval: DefaultInterval}
}

// Name implements Named.
func (d *Driver) Name() string {
	return "sim-driver"
}

// Add adds steppers, usually *bitclock.Timer.
func (d *Driver) Add(steppers ...fx.Stepper) *Driver {
	d.lock.Lock()
	d.steppers = append(d.steppers, steppers...)
	d.lock.Unlock()
	return d
}

// Ticks returns the number of ticks stepped so far.
func (d *Driver) Ticks() uint64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.ticks
}

// Advance steps all timers n ticks.
func (d *Driver) Advance(n int) {
	d.lock.Lock()
	defer d.lock.Unlock()
	for i := 0; i < n; i++ {
		for _, s := range d.steppers {
			s.Step()
		}
	}
	d.ticks += uint64(n)
}

// Step steps all timers one tick.
func (d *Driver) Step() {
	d.Advance(1)
}

// Run implements Runnable.
func (d *Driver) Run(ctx context.Context) error {
	if d.Speed <= 0 {
		return d.runUnpaced(ctx)
	}
	interval := d.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	rate := float64(d.ClockHz) * d.Speed
	// skip ticks instead of catching up after a long stall.
	maxBehind := uint64(rate)
	glog.Infof("sim driver: %d Hz x %.3f", d.ClockHz, d.Speed)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()
	var done uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			target := uint64(now.Sub(start).Seconds() * rate)
			if target-done > maxBehind {
				glog.Warningf("sim driver behind by %d ticks", target-done-maxBehind)
				done = target - maxBehind
			}
			if n := target - done; n > 0 {
				d.Advance(int(n))
				done = target
			}
		}
	}
}

func (d *Driver) runUnpaced(ctx context.Context) error {
	glog.Infof("sim driver: %d Hz unpaced", d.ClockHz)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		d.Advance(BatchTicks)
		// let blocked foreground goroutines pick up their wakes.
		runtime.Gosched()
	}
}
