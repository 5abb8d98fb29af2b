// Package pgn implements the fixed 14-byte frame format spoken between the
// controller and the steer/machine modules:
//
//	[0]  0x80 preamble
//	[1]  0x81 preamble
//	[2]  source address
//	[3]  message id
//	[4]  payload length, always 8
//	[5..12] payload
//	[13] checksum, sum of bytes 2..12 mod 256
//
// Multi-byte payload fields are big-endian. Encoders fill caller-owned
// frames and parsers read from them, so the cycle path never allocates.
package pgn

import (
	"errors"
)

const (
	// FrameLen is the wire size of every frame.
	FrameLen = 14
	// PayloadLen is fixed for all current messages.
	PayloadLen = 8

	preamble0 = 0x80
	preamble1 = 0x81

	// SourceController marks frames sent by this program,
	// SourceSteerModule frames sent by the steer module.
	SourceController  = 0x7F
	SourceSteerModule = 0x7E
)

// Message ids.
const (
	PGNSteerData      = 0xFE // controller -> steer module, per cycle
	PGNFromSteer      = 0xFD // steer module -> controller, feedback
	PGNSteerSettings  = 0xFC // controller -> steer module, gains
	PGNSteerConfig    = 0xFB // controller -> steer module, wiring
	PGNMachineData    = 0xEF // controller -> machine module
	PGNIMUData        = 0xD3 // IMU -> controller
	PGNHelloFromSteer = 0x7E // steer module -> controller, on boot
)

// Status bits in the steer data payload.
const (
	StatusSteerSwitch   = 1 << 0
	StatusWorkSwitch    = 1 << 1
	StatusSteerEnabled  = 1 << 2
	StatusGPSValid      = 1 << 3
	StatusGuidanceValid = 1 << 4
)

var (
	ErrLength     = errors.New("pgn: wrong frame length")
	ErrPreamble   = errors.New("pgn: bad preamble")
	ErrPayloadLen = errors.New("pgn: bad payload length byte")
	ErrChecksum   = errors.New("pgn: checksum mismatch")
	ErrWrongPGN   = errors.New("pgn: unexpected message id")
)

// Frame is one wire frame. The zero value is not valid until an encoder
// has filled it.
type Frame [FrameLen]byte

// PGN returns the message id byte.
func (f *Frame) PGN() byte {
	return f[3]
}

// Source returns the sender address byte.
func (f *Frame) Source() byte {
	return f[2]
}

// Payload returns the 8 payload bytes.
func (f *Frame) Payload() []byte {
	return f[5 : 5+PayloadLen]
}

// Bytes returns the frame as a slice for sending.
func (f *Frame) Bytes() []byte {
	return f[:]
}

// begin stamps the envelope; seal must run after the payload is written.
func (f *Frame) begin(id byte) {
	f.beginAs(SourceController, id)
}

func (f *Frame) beginAs(src, id byte) {
	f[0] = preamble0
	f[1] = preamble1
	f[2] = src
	f[3] = id
	f[4] = PayloadLen
}

// seal writes the checksum over bytes 2..12.
func (f *Frame) seal() {
	f[FrameLen-1] = Checksum(f[:])
}

// Checksum sums bytes 2 through len-2 mod 256. The slice must be at least
// three bytes; frames are always FrameLen.
func Checksum(b []byte) byte {
	var sum int
	for _, v := range b[2 : len(b)-1] {
		sum += int(v)
	}
	return byte(sum)
}

// Validate checks envelope and checksum and returns the frame by value.
// Any single flipped bit in the covered bytes fails the checksum test.
func Validate(raw []byte) (Frame, error) {
	var f Frame
	if len(raw) != FrameLen {
		return f, ErrLength
	}
	if raw[0] != preamble0 || raw[1] != preamble1 {
		return f, ErrPreamble
	}
	if raw[4] != PayloadLen {
		return f, ErrPayloadLen
	}
	if raw[FrameLen-1] != Checksum(raw) {
		return f, ErrChecksum
	}
	copy(f[:], raw)
	return f, nil
}
