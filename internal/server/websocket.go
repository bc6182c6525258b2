package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"mote-scheduler/internal/eventBus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandler upgrades the connection to WebSocket and pushes events from the EventBus.
func wsHandler(eb *eventBus.EventBus, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Upgrade error")
		return
	}
	defer conn.Close()

	eventCh := eb.Subscribe()
	defer eb.Unsubscribe(eventCh)

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.WithError(err).Debug("Write error")
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
