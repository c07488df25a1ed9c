package websocket

import "golang.org/x/net/websocket"

// Conn implements bridge.PacketReadWriter over binary websocket messages.
type Conn websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *Conn {
	return (*Conn)(conn)
}

// ReadPacket implements PacketReader.
func (c *Conn) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(c), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (c *Conn) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(c), pkt)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return (*websocket.Conn)(c).Close()
}
