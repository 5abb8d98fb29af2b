package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// UDP listens for module and GPS traffic on one port and broadcasts
// outbound frames to another, the usual wiring on an implement subnet
// where every module hears every frame.
type UDP struct {
	conn *net.UDPConn
	dest *net.UDPAddr
	wg   sync.WaitGroup
}

// ListenUDP opens the socket with SO_REUSEADDR and SO_BROADCAST set, so a
// monitor can share the port and outbound frames may target a broadcast
// address. Port 0 picks an ephemeral port. h may be nil for send-only use.
func ListenUDP(listenPort, modulePort int, broadcast string, h Handler) (*UDP, error) {
	ip := net.ParseIP(broadcast)
	if ip == nil {
		return nil, fmt.Errorf("transport: bad broadcast address %q", broadcast)
	}

	lc := net.ListenConfig{Control: reuseAndBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", listenPort))
	if err != nil {
		return nil, fmt.Errorf("transport: listen :%d: %w", listenPort, err)
	}

	u := &UDP{
		conn: pc.(*net.UDPConn),
		dest: &net.UDPAddr{IP: ip, Port: modulePort},
	}
	if h != nil {
		u.wg.Add(1)
		go u.read(h)
	}
	return u, nil
}

func reuseAndBroadcast(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}

// LocalPort returns the bound listen port, useful after asking for 0.
func (u *UDP) LocalPort() int {
	return u.conn.LocalAddr().(*net.UDPAddr).Port
}

func (u *UDP) read(h Handler) {
	defer u.wg.Done()
	buf := make([]byte, 2048)
	for {
		n, _, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if n > 0 {
			h(buf[:n])
		}
	}
}

// Send broadcasts one datagram to the module port.
func (u *UDP) Send(raw []byte) error {
	_, err := u.conn.WriteToUDP(raw, u.dest)
	return err
}

// Close shuts the socket and waits for the reader to drain.
func (u *UDP) Close() error {
	err := u.conn.Close()
	u.wg.Wait()
	return err
}
