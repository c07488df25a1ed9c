package stream

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxPacketSize limits the length accepted by ReadPacket.
const MaxPacketSize = 1 << 20

// ReadWriter implements bridge.PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, errors.Errorf("packet size %d too large", size)
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(p, pkt); err != nil {
		return nil, errors.Wrap(err, "truncated packet")
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(pkt)))
	if _, err := p.Write(hdr[:]); err != nil {
		return err
	}
	_, err := p.Write(pkt)
	return err
}
