package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection with the hub and pumps frames until the
// peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID, userID string) {
	client := NewClient(hub, c, sessionID, userID)
	if !hub.Register(client) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
