package sim

import (
	"github.com/robotalks/softuart/pkg/bitclock"
)

// Connect wires the output pin of channel fromCh on from to the input pin
// of channel toCh on to. The current output level is applied right away.
func Connect(from *bitclock.Timer, fromCh int, to *bitclock.Timer, toCh int) {
	from.OnOutput(fromCh, func(_ bitclock.Tick, l bitclock.Level) {
		to.Drive(toCh, l)
	})
	from.Atomic(func() {
		to.Drive(toCh, from.Channel(fromCh).Output())
	})
}

// Loopback wires channel txCh to channel rxCh on the same timer.
func Loopback(t *bitclock.Timer, txCh, rxCh int) {
	Connect(t, txCh, t, rxCh)
}
