package mqtt

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"

	"github.com/robotalks/softuart/pkg/bridge/msgs"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/uart"
)

// Topic names under the device.
const (
	TopicRX   = "rx"
	TopicTX   = "tx"
	TopicMeta = "meta"
)

// Queue sizes of the bridge.
const (
	EventQueueSize    = 256
	TransmitQueueSize = 16
)

// Transmitter accepts bytes to send over the line.
type Transmitter interface {
	Transmit(ctx context.Context, b byte) error
}

// Meta is published retained on the meta topic while the bridge runs.
type Meta struct {
	Device   string `json:"device"`
	App      string `json:"app,omitempty"`
	ClockHz  uint   `json:"clock_hz"`
	Baud     uint   `json:"baud"`
	StopBits uint   `json:"stop_bits"`
}

// MetaFrom fills Meta from the line config.
func MetaFrom(device, app string, conf *uart.Config) Meta {
	return Meta{
		Device:   device,
		App:      app,
		ClockHz:  conf.ClockHz,
		Baud:     conf.Baud,
		StopBits: conf.StopBits,
	}
}

// Topic builds the topic of name under device.
func Topic(device, name string) string {
	return device + "/" + name
}

// NewQueueForDevice creates a Queue from a broker URL with a will clearing
// the device meta.
func NewQueueForDevice(brokerURL, device string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+Topic(device, TopicMeta), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("softuart:" + device)
	}
	return NewQueue(opts, topicPrefix), nil
}

// Bridge publishes frames received by a session and transmits bytes
// published to the device.
type Bridge struct {
	PubSub PubSub
	Port   Transmitter
	Meta   Meta

	seq     uint64
	eventCh chan *msgs.FrameEvent
	txCh    chan []byte
}

// NewBridge creates a Bridge. Register it as a FrameObserver of the
// session owning port.
func NewBridge(ps PubSub, port Transmitter, meta Meta) *Bridge {
	return &Bridge{
		PubSub:  ps,
		Port:    port,
		Meta:    meta,
		eventCh: make(chan *msgs.FrameEvent, EventQueueSize),
		txCh:    make(chan []byte, TransmitQueueSize),
	}
}

// Name implements Named.
func (b *Bridge) Name() string {
	return "mqtt-bridge"
}

// FrameDone implements uart.FrameObserver.
func (b *Bridge) FrameDone(rec uart.FrameRecord) {
	if rec.Direction != uart.DirRX {
		return
	}
	b.seq++
	select {
	case b.eventCh <- msgs.NewFrameEvent(b.Meta.Device, b.seq, rec):
	default:
		glog.Warningf("MQTT event queue full, dropped frame %d", b.seq)
	}
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	meta, err := json.Marshal(&b.Meta)
	if err != nil {
		return err
	}
	metaTopic := Topic(b.Meta.Device, TopicMeta)
	if err = b.PubSub.Publish(metaTopic, meta, true); err != nil {
		return err
	}
	defer b.PubSub.Publish(metaTopic, nil, true)

	sub, err := b.PubSub.Subscribe(Topic(b.Meta.Device, TopicTX), b.handleTX)
	if err != nil {
		return err
	}
	defer sub.Close()

	return fx.NewRunnerWith(ctx).
		Go(fx.NamedRun("mqtt-events", fx.RunFunc(b.publishEvents))).
		Go(fx.NamedRun("mqtt-tx", fx.RunFunc(b.transmit))).
		Wait()
}

func (b *Bridge) handleTX(_ string, payload []byte) {
	data := make([]byte, len(payload))
	copy(data, payload)
	select {
	case b.txCh <- data:
	default:
		glog.Warningf("MQTT transmit queue full, dropped %d bytes", len(data))
	}
}

func (b *Bridge) publishEvents(ctx context.Context) error {
	topic := Topic(b.Meta.Device, TopicRX)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.eventCh:
			data, err := msgs.Encode(ev)
			if err != nil {
				return err
			}
			if err = b.PubSub.Publish(topic, data, false); err != nil {
				glog.Warningf("publish frame %d: %v", ev.Seq, err)
			}
		}
	}
}

func (b *Bridge) transmit(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-b.txCh:
			glog.V(2).Infof("MQTT TX %q", data)
			for _, c := range data {
				if err := b.Port.Transmit(ctx, c); err != nil {
					return err
				}
			}
		}
	}
}
