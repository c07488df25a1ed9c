package bitclock

import "sync/atomic"

// Mode is the operating mode of a channel.
type Mode int

// Channel modes.
const (
	// ModeCompare fires once the counter reaches the armed target.
	ModeCompare Mode = iota
	// ModeCapture latches the counter when the watched edge is seen on the
	// channel input.
	ModeCapture
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ModeCapture {
		return "capture"
	}
	return "compare"
}

// Edge selects input transitions watched in capture mode.
type Edge int

// Edges, usable as a mask.
const (
	EdgeNone    Edge = 0
	EdgeRising  Edge = 1
	EdgeFalling Edge = 2
	EdgeBoth         = EdgeRising | EdgeFalling
)

// OutputMode defines what the output unit does on a compare match.
type OutputMode int

// Output modes.
const (
	// OutputLevel drives the static output level, compare matches
	// don't change the pin.
	OutputLevel OutputMode = iota
	// OutputSet drives the pin high on compare match.
	OutputSet
	// OutputReset drives the pin low on compare match.
	OutputReset
)

// Event describes a compare or capture event delivered to a Handler.
type Event struct {
	Channel int
	// Tick is the counter value at the event. For capture events it's
	// also the captured value (the channel target).
	Tick Tick
	Mode Mode
	// Edge is the transition that triggered a capture event.
	Edge Edge
	// Level is the synchronized input level latched at the event.
	Level Level
}

// Handler handles channel events.
// It's called with the timer lock held and must complete quickly.
type Handler interface {
	HandleEvent(*Channel, Event)
}

// HandlerFunc is the func form of Handler.
type HandlerFunc func(*Channel, Event)

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(c *Channel, ev Event) {
	f(c, ev)
}

// OutputListener observes changes of a channel output pin.
// It's called with the timer lock held.
type OutputListener func(Tick, Level)

// Channel is one compare/capture channel of a Timer.
//
// Except for Drive and Output listeners, Channel methods must be called
// from the channel handler or inside Timer.Atomic.
type Channel struct {
	timer   *Timer
	index   int
	mode    Mode
	edge    Edge
	target  Tick
	armed   bool
	outMode OutputMode
	outBit  Level
	out     Level
	input   Level
	synced  Level
	pin     int32

	handler   Handler
	listeners []OutputListener
}

// Index returns the channel number.
func (c *Channel) Index() int {
	return c.index
}

// Timer returns the owning timer.
func (c *Channel) Timer() *Timer {
	return c.timer
}

// Mode returns the current mode.
func (c *Channel) Mode() Mode {
	return c.mode
}

// Target returns the last armed target, or the last captured counter value.
func (c *Channel) Target() Tick {
	return c.target
}

// Armed indicates whether the channel will deliver its next event.
func (c *Channel) Armed() bool {
	return c.armed
}

// Arm switches the channel to mode and arms it with an absolute target.
// A compare arming is one-shot: it delivers exactly one event, and the
// handler re-arms for periodic behavior. A capture arming stays active
// until the mode changes or the channel is disarmed.
func (c *Channel) Arm(mode Mode, target Tick) {
	c.mode, c.target, c.armed = mode, target, true
}

// RearmRelative arms the channel again at the last target plus delta.
// Using the last target instead of the current counter keeps rounding
// and handler latency from accumulating.
func (c *Channel) RearmRelative(delta uint16) {
	c.target = c.target.Add(delta)
	c.armed = true
}

// Disarm stops event delivery.
func (c *Channel) Disarm() {
	c.armed = false
}

// SetMode switches the mode and keeps the target and arming.
func (c *Channel) SetMode(mode Mode) {
	c.mode = mode
}

// WatchEdge selects the input transitions captured in capture mode.
func (c *Channel) WatchEdge(edge Edge) {
	c.edge = edge
}

// SetOutputMode sets the action applied on compare matches.
// Switching to OutputLevel drives the static output level immediately.
func (c *Channel) SetOutputMode(mode OutputMode) {
	c.outMode = mode
	if mode == OutputLevel {
		c.drive(c.outBit)
	}
}

// SetOutput sets the static output level used by OutputLevel.
func (c *Channel) SetOutput(l Level) {
	c.outBit = l
	if c.outMode == OutputLevel {
		c.drive(l)
	}
}

// Output returns the current output pin level.
func (c *Channel) Output() Level {
	return c.out
}

// Input returns the input level as seen by the timer.
func (c *Channel) Input() Level {
	return c.input
}

// SyncedInput returns the synchronized input latch. It's updated on every
// compare match and capture, so a compare handler can sample the line at
// the very tick of the event.
func (c *Channel) SyncedInput() Level {
	return c.synced
}

// SetHandler attaches the event handler.
func (c *Channel) SetHandler(h Handler) {
	c.handler = h
}

// Drive sets the level of the channel input pin. It can be called from
// any goroutine, the timer picks it up on its next Step.
func (c *Channel) Drive(l Level) {
	atomic.StoreInt32(&c.pin, int32(l))
}

func (c *Channel) drive(l Level) {
	if c.out == l {
		return
	}
	c.out = l
	for _, fn := range c.listeners {
		fn(c.timer.count, l)
	}
}

func (c *Channel) compare(now Tick) {
	c.synced = c.input
	switch c.outMode {
	case OutputSet:
		c.drive(High)
	case OutputReset:
		c.drive(Low)
	}
	c.armed = false
	if c.handler != nil {
		c.handler.HandleEvent(c, Event{
			Channel: c.index,
			Tick:    now,
			Mode:    ModeCompare,
			Level:   c.synced,
		})
	}
}

func (c *Channel) sense(now Tick) {
	l := Level(atomic.LoadInt32(&c.pin))
	if l == c.input {
		return
	}
	edge := EdgeRising
	if l == Low {
		edge = EdgeFalling
	}
	c.input = l
	if c.mode != ModeCapture || !c.armed || c.edge&edge == 0 {
		return
	}
	c.target, c.synced = now, l
	if c.handler != nil {
		c.handler.HandleEvent(c, Event{
			Channel: c.index,
			Tick:    now,
			Mode:    ModeCapture,
			Edge:    edge,
			Level:   l,
		})
	}
}
