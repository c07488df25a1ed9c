package bitclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type eventLog struct {
	events []Event
}

func (l *eventLog) HandleEvent(c *Channel, ev Event) {
	l.events = append(l.events, ev)
}

func TestTickArithmetic(t *testing.T) {
	testCases := []struct {
		name  string
		t, u  Tick
		sub   int16
		since uint16
	}{
		{"forward", 200, 100, 100, 100},
		{"backward", 100, 200, -100, 65436},
		{"across wrap", 10, 65530, 16, 16},
		{"behind across wrap", 65530, 10, -16, 65520},
		{"max delta", MaxDelta, 0, MaxDelta, MaxDelta},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.sub, tc.t.Sub(tc.u))
			require.Equal(t, tc.since, tc.t.Since(tc.u))
		})
	}
	require.Equal(t, Tick(4), Tick(65530).Add(10))
}

func TestCompareIsOneShot(t *testing.T) {
	tm := New()
	var log eventLog
	ch := tm.Channel(0)
	tm.Atomic(func() {
		ch.SetHandler(&log)
		ch.Arm(ModeCompare, tm.Count().Add(5))
	})
	tm.Advance(4)
	require.Empty(t, log.events)
	tm.Advance(1)
	require.Len(t, log.events, 1)
	require.Equal(t, Tick(5), log.events[0].Tick)
	require.Equal(t, ModeCompare, log.events[0].Mode)
	tm.Advance(1 << 16)
	require.Len(t, log.events, 1)
}

func TestRearmRelativeIsDriftFree(t *testing.T) {
	tm := New()
	var ticks []Tick
	ch := tm.Channel(0)
	tm.Atomic(func() {
		ch.SetHandler(HandlerFunc(func(c *Channel, ev Event) {
			ticks = append(ticks, ev.Tick)
			if len(ticks) < 5 {
				c.RearmRelative(104)
			}
		}))
		ch.Arm(ModeCompare, 104)
	})
	tm.Advance(1000)
	require.Equal(t, []Tick{104, 208, 312, 416, 520}, ticks)
	require.False(t, ch.Armed())
}

func TestCompareAcrossWrap(t *testing.T) {
	tm := New()
	tm.Preset(65500)
	var log eventLog
	ch := tm.Channel(1)
	tm.Atomic(func() {
		ch.SetHandler(&log)
		ch.Arm(ModeCompare, tm.Count().Add(100))
	})
	tm.Advance(99)
	require.Empty(t, log.events)
	tm.Advance(1)
	require.Len(t, log.events, 1)
	require.Equal(t, Tick(64), log.events[0].Tick)
}

func TestOutputModes(t *testing.T) {
	tm := New()
	ch := tm.Channel(0)
	type change struct {
		tick  Tick
		level Level
	}
	var changes []change
	tm.OnOutput(0, func(tick Tick, l Level) {
		changes = append(changes, change{tick, l})
	})
	tm.Atomic(func() {
		ch.SetOutput(High)
		ch.SetHandler(HandlerFunc(func(c *Channel, ev Event) {
			c.RearmRelative(10)
			c.SetOutputMode(OutputReset)
		}))
		ch.SetOutputMode(OutputSet)
		ch.Arm(ModeCompare, 10)
	})
	require.Equal(t, []change{{0, High}}, changes)
	tm.Advance(25)
	require.Equal(t, []change{{0, High}, {20, Low}}, changes)
	require.Equal(t, Low, ch.Output())
}

func TestCaptureFallingEdge(t *testing.T) {
	tm := New()
	var log eventLog
	ch := tm.Channel(1)
	tm.Atomic(func() {
		ch.SetHandler(&log)
		ch.WatchEdge(EdgeFalling)
		ch.Arm(ModeCapture, 0)
	})
	tm.Drive(1, High)
	tm.Advance(3)
	require.Empty(t, log.events)
	tm.Drive(1, Low)
	tm.Advance(1)
	require.Len(t, log.events, 1)
	ev := log.events[0]
	require.Equal(t, ModeCapture, ev.Mode)
	require.Equal(t, EdgeFalling, ev.Edge)
	require.Equal(t, Tick(4), ev.Tick)
	require.Equal(t, Tick(4), ch.Target())
	require.Equal(t, Low, ch.SyncedInput())
}

func TestSyncedInputLatchedOnCompare(t *testing.T) {
	tm := New()
	ch := tm.Channel(1)
	var samples []Level
	tm.Atomic(func() {
		ch.SetHandler(HandlerFunc(func(c *Channel, ev Event) {
			samples = append(samples, c.SyncedInput())
			c.RearmRelative(10)
		}))
		ch.Arm(ModeCompare, 10)
	})
	tm.Drive(1, High)
	tm.Advance(15)
	tm.Drive(1, Low)
	tm.Advance(10)
	tm.Drive(1, High)
	tm.Advance(10)
	require.Equal(t, []Level{High, Low, High}, samples)
}

func TestModeSwitchKeepsTarget(t *testing.T) {
	tm := New()
	ch := tm.Channel(0)
	tm.Atomic(func() {
		ch.Arm(ModeCapture, 42)
		ch.SetMode(ModeCompare)
	})
	require.Equal(t, ModeCompare, ch.Mode())
	require.Equal(t, Tick(42), ch.Target())
	require.True(t, ch.Armed())
}
