package uart

import (
	"fmt"

	"github.com/robotalks/softuart/pkg/bitclock"
)

// TxFrame is a byte padded with a start bit (0) below and stop bits (1)
// above, shifted out least significant bit first.
type TxFrame uint16

// NewTxFrame frames b with the given number of stop bits.
func NewTxFrame(b byte, stopBits uint) TxFrame {
	stop := uint16(1)<<stopBits - 1
	return TxFrame((uint16(b) | stop<<DataBits) << 1)
}

// Bit is the level of the next bit to shift out.
func (f TxFrame) Bit() bitclock.Level {
	return bitclock.LevelOf(uint(f))
}

// Next drops the bit just shifted out.
func (f TxFrame) Next() TxFrame {
	return f >> 1
}

// Levels expands the first n bits of the frame in line order.
func (f TxFrame) Levels(n int) []bitclock.Level {
	levels := make([]bitclock.Level, n)
	for i := range levels {
		levels[i] = f.Bit()
		f = f.Next()
	}
	return levels
}

// DecodeLevels decodes a frame from line levels in line order: a start
// bit followed by 8 data bits. Anything after the data bits is ignored.
// ok is false when there are not enough levels or the start bit isn't low.
func DecodeLevels(levels []bitclock.Level) (b byte, ok bool) {
	if len(levels) < 1+DataBits || levels[0] != bitclock.Low {
		return 0, false
	}
	for i := DataBits; i >= 1; i-- {
		b = b<<1 | byte(levels[i])
	}
	return b, true
}

// Direction is the direction of a frame.
type Direction int

// Directions
const (
	DirTX Direction = iota + 1
	DirRX
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case DirTX:
		return "tx"
	case DirRX:
		return "rx"
	}
	return fmt.Sprintf("dir(%d)", int(d))
}

// DutyCycleSample is a pair of ticks recorded around a frame.
type DutyCycleSample struct {
	Start bitclock.Tick
	End   bitclock.Tick
	// Interval and Bits give the nominal frame duration.
	Interval uint16
	Bits     int
}

// Valid indicates a sample was recorded.
func (s DutyCycleSample) Valid() bool {
	return s.Interval > 0 && s.Bits > 0
}

// Elapsed is the number of ticks between Start and End.
func (s DutyCycleSample) Elapsed() uint16 {
	return s.End.Since(s.Start)
}

// Percent is the elapsed time relative to the nominal frame duration.
// Integer arithmetic only, it's computed in handler context.
func (s DutyCycleSample) Percent() uint32 {
	if !s.Valid() {
		return 0
	}
	return uint32(s.Elapsed()) * 100 / (uint32(s.Interval) * uint32(s.Bits))
}

// FrameRecord describes a completed frame.
type FrameRecord struct {
	Direction Direction
	Value     byte
	Sample    DutyCycleSample
}

// FrameObserver is notified of every completed frame.
// It's called in handler context and must not block.
type FrameObserver interface {
	FrameDone(FrameRecord)
}

// FrameDoneFunc is the func form of FrameObserver.
type FrameDoneFunc func(FrameRecord)

// FrameDone implements FrameObserver.
func (f FrameDoneFunc) FrameDone(rec FrameRecord) {
	f(rec)
}
