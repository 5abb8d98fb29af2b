// Package transport moves raw bytes between the controller and the
// modules. Two backends exist: UDP broadcast on the implement subnet and
// a direct serial link. Parsing stays out of this layer; received chunks
// go to a Handler as whole datagrams (UDP) or pre-framed tokens (serial).
package transport

// Handler receives one inbound chunk. The slice is only valid for the
// duration of the call; copy it to keep it.
type Handler func(raw []byte)

// Sender is the outbound half shared by all backends, including the
// simulator.
type Sender interface {
	Send(raw []byte) error
	Close() error
}
