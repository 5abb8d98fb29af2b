package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/openfieldag/gosteer/vehicle"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WatchCommand is the only message a watching client may send.
type WatchCommand struct {
	Action string `json:"action"`
}

// WatchHandler streams one status document per guidance cycle and accepts
// engage/disengage on the same socket, so a tablet in the cab needs
// exactly one connection. The websocket goroutine is the only writer;
// command outcomes show up in the next status document.
func WatchHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer conn.Close()

	// a slow client drops ticks instead of stalling the cycle
	ticks := make(chan vehicle.Snapshot, 8)
	remove := ENV.Pilot.AddListener(func(snap vehicle.Snapshot) {
		select {
		case ticks <- snap:
		default:
		}
	})
	defer remove()

	done := make(chan struct{})
	defer close(done)

	// first document goes out before the first cycle, a parked tractor
	// still renders a dashboard
	if err := conn.WriteJSON(ENV.Pilot.Status()); err != nil {
		return
	}

	go func(conn *websocket.Conn, ticks chan vehicle.Snapshot, done chan struct{}) {
		for {
			select {
			case <-ticks:
				// reread the full status at write time, the tick only
				// says a cycle happened
				if err := conn.WriteJSON(ENV.Pilot.Status()); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}(conn, ticks, done)

	for {
		var cmd WatchCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			log.Println("read:", err)
			break
		}

		switch cmd.Action {
		case "engage":
			if err := ENV.Pilot.Engage(); err != nil {
				log.Println("watch engage:", err)
			}
		case "disengage":
			ENV.Pilot.Disengage()
		}
	}
}
