package stream

import (
	"context"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/softuart/pkg/bridge"
	"github.com/robotalks/softuart/pkg/bridge/msgs"
	"github.com/robotalks/softuart/pkg/uart"
)

// RecorderQueueSize is the number of frames buffered before dropping.
const RecorderQueueSize = 1024

// Recorder writes frame events of one or more sessions as Typed packets.
type Recorder struct {
	Writer bridge.PacketWriter

	eventCh chan *msgs.FrameEvent
}

// NewRecorder creates a Recorder.
func NewRecorder(w bridge.PacketWriter) *Recorder {
	return &Recorder{Writer: w, eventCh: make(chan *msgs.FrameEvent, RecorderQueueSize)}
}

// Name implements Named.
func (r *Recorder) Name() string {
	return "recorder"
}

// Observer returns a uart.FrameObserver labeling frames with device.
// Observers of sessions on different timers may run concurrently, so each
// keeps its own sequence.
func (r *Recorder) Observer(device string) uart.FrameObserver {
	var seq uint64
	return uart.FrameDoneFunc(func(rec uart.FrameRecord) {
		seq++
		select {
		case r.eventCh <- msgs.NewFrameEvent(device, seq, rec):
		default:
			glog.Warningf("recorder queue full, dropped %s frame %d", device, seq)
		}
	})
}

// Run implements Runnable.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case ev := <-r.eventCh:
			if err := r.write(ev); err != nil {
				return err
			}
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case ev := <-r.eventCh:
			if err := r.write(ev); err != nil {
				glog.Warningf("recorder: %v", err)
				return
			}
		default:
			return
		}
	}
}

func (r *Recorder) write(ev *msgs.FrameEvent) error {
	data, err := msgs.Encode(ev)
	if err != nil {
		return err
	}
	return r.Writer.WritePacket(data)
}

// ReadEvents reads all recorded frame events until EOF.
func ReadEvents(rd bridge.PacketReader) ([]*msgs.FrameEvent, error) {
	var events []*msgs.FrameEvent
	for {
		pkt, err := rd.ReadPacket()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		msg, err := msgs.DecodeMessage(pkt)
		if err != nil {
			return events, err
		}
		if ev, ok := msg.(*msgs.FrameEvent); ok {
			events = append(events, ev)
		}
	}
}
