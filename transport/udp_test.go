package transport

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestUDPLoopback(t *testing.T) {
	Convey("frames sent over UDP arrive at the listener", t, func() {
		got := make(chan []byte, 4)
		rx, err := ListenUDP(0, 9, "127.0.0.1", func(raw []byte) {
			cp := append([]byte(nil), raw...)
			select {
			case got <- cp:
			default:
			}
		})
		So(err, ShouldBeNil)
		defer rx.Close()

		tx, err := ListenUDP(0, rx.LocalPort(), "127.0.0.1", nil)
		So(err, ShouldBeNil)
		defer tx.Close()

		payload := []byte{0x80, 0x81, 0x7F, 0xFE, 0x08, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		So(tx.Send(payload), ShouldBeNil)

		select {
		case raw := <-got:
			So(raw, ShouldResemble, payload)
		case <-time.After(2 * time.Second):
			So("timeout waiting for datagram", ShouldBeEmpty)
		}
	})

	Convey("a bad broadcast address is rejected at setup", t, func() {
		_, err := ListenUDP(0, 9, "not-an-ip", nil)
		So(err, ShouldNotBeNil)
	})
}
