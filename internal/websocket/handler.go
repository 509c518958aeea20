package websocket

import (
	"clinical-assistant-be/pkg/live"

	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection with the hub and blocks until it closes.
func ServeWs(hub *Hub, conn *websocket.Conn, key live.Key, handler FrameHandler) {
	client := newClient(hub, conn, key, handler)
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
