package bitclock

import "sync"

// DefaultChannels is the channel count of a Timer created by New.
const DefaultChannels = 2

// Timer is a free-running counter shared by several channels.
type Timer struct {
	count    Tick
	channels []*Channel
	lock     sync.Mutex
}

// New creates a Timer with DefaultChannels channels.
func New() *Timer {
	return NewWithChannels(DefaultChannels)
}

// NewWithChannels creates a Timer with n channels.
func NewWithChannels(n int) *Timer {
	t := &Timer{channels: make([]*Channel, n)}
	for i := range t.channels {
		t.channels[i] = &Channel{timer: t, index: i}
	}
	return t
}

// Channel returns channel i.
func (t *Timer) Channel(i int) *Channel {
	return t.channels[i]
}

// Channels returns the channel count.
func (t *Timer) Channels() int {
	return len(t.channels)
}

// Now reads the counter from the foreground.
func (t *Timer) Now() Tick {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.count
}

// Count reads the counter from a handler or inside Atomic.
func (t *Timer) Count() Tick {
	return t.count
}

// Preset loads the counter with a value.
func (t *Timer) Preset(count Tick) {
	t.lock.Lock()
	t.count = count
	t.lock.Unlock()
}

// Atomic runs fn with all handlers excluded. It's the foreground critical
// section for touching channel state.
func (t *Timer) Atomic(fn func()) {
	t.lock.Lock()
	defer t.lock.Unlock()
	fn()
}

// Drive sets the input pin of channel ch.
func (t *Timer) Drive(ch int, l Level) {
	t.channels[ch].Drive(l)
}

// OnOutput registers a listener on the output pin of channel ch.
// Listeners must be registered before the timer is stepped.
func (t *Timer) OnOutput(ch int, fn OutputListener) {
	t.lock.Lock()
	c := t.channels[ch]
	c.listeners = append(c.listeners, fn)
	t.lock.Unlock()
}

// Step advances the counter by one tick.
//
// Compare matches are processed first, in channel order, so outputs
// change exactly on the target tick. Input pins are sensed afterwards, and
// capture channels watching the observed edge fire on the same tick.
func (t *Timer) Step() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.count++
	now := t.count
	for _, c := range t.channels {
		if c.mode == ModeCompare && c.armed && c.target == now {
			c.compare(now)
		}
	}
	for _, c := range t.channels {
		c.sense(now)
	}
}

// Advance steps the timer n ticks.
func (t *Timer) Advance(n int) {
	for i := 0; i < n; i++ {
		t.Step()
	}
}
