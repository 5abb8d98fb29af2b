package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/openfieldag/gosteer/pgn"
)

// Serial drives a module wired straight to the controller. The byte
// stream interleaves NMEA text and binary frames, so the reader runs a
// resynchronising splitter instead of a line scanner.
type Serial struct {
	port serial.Port
	wg   sync.WaitGroup
}

// OpenSerial opens the device 8N1 at the given baud rate and starts the
// reader. h may be nil for send-only use.
func OpenSerial(device string, baud int, h Handler) (*Serial, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", device, err)
	}
	s := &Serial{port: port}
	if h != nil {
		s.wg.Add(1)
		go s.read(h)
	}
	return s, nil
}

func (s *Serial) read(h Handler) {
	defer s.wg.Done()
	sc := bufio.NewScanner(s.port)
	sc.Split(SplitFrames)
	for sc.Scan() {
		h(sc.Bytes())
	}
}

// Send writes one frame to the device.
func (s *Serial) Send(raw []byte) error {
	_, err := s.port.Write(raw)
	return err
}

// Close closes the port and waits for the reader to drain.
func (s *Serial) Close() error {
	err := s.port.Close()
	s.wg.Wait()
	return err
}

// SplitFrames tokenises the mixed serial stream into 14-byte module
// frames and NMEA lines. A frame starts 0x80 0x81; a sentence starts '$'
// and ends at the newline. Neither start byte can occur inside the other
// token kind, so scanning byte by byte resynchronises after line noise.
func SplitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case 0x80:
			if i+1 < len(data) && data[i+1] != 0x81 {
				continue
			}
			if i+pgn.FrameLen <= len(data) {
				return i + pgn.FrameLen, data[i : i+pgn.FrameLen], nil
			}
			if atEOF {
				return len(data), nil, nil
			}
			// skip leading noise, then wait for the rest of the frame
			return i, nil, nil
		case '$':
			if j := bytes.IndexByte(data[i:], '\n'); j >= 0 {
				return i + j + 1, data[i : i+j+1], nil
			}
			if atEOF {
				return len(data), nil, nil
			}
			return i, nil, nil
		}
	}
	return len(data), nil, nil
}
