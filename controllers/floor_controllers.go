package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/reservation-app/floor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FloorHandler -> WebSocket endpoint for floor displays
func FloorHandler(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	floor.RegisterClient(ws)

	// Keep reading until the client hangs up.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	floor.UnregisterClient(ws)
}
