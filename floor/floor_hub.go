package floor

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/reservation-app/models"
)

// Event types
const (
	EventReservationCreate = "reservation_create"
	EventReservationUpdate = "reservation_update"
	EventReservationDelete = "reservation_delete"
	EventTableCreate       = "table_create"
	EventTableUpdate       = "table_update"
	EventTableDelete       = "table_delete"
	EventWaitlistUpdate    = "waitlist_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// FloorHub holds every connected floor display (host stand, waiter tablets)
// for realtime table and reservation updates.
type FloorHub struct {
	clients map[*websocket.Conn]bool
	mutex   sync.Mutex
}

var floorHub = FloorHub{
	clients: make(map[*websocket.Conn]bool),
}

// RegisterClient -> adds a connection to the set
func RegisterClient(conn *websocket.Conn) {
	floorHub.mutex.Lock()
	defer floorHub.mutex.Unlock()
	floorHub.clients[conn] = true
}

// UnregisterClient -> releases a connection
func UnregisterClient(conn *websocket.Conn) {
	floorHub.mutex.Lock()
	defer floorHub.mutex.Unlock()
	delete(floorHub.clients, conn)
	conn.Close()
}

// BroadcastReservationCreate -> a new reservation entered the system
func BroadcastReservationCreate(reservation models.Reservation) {
	broadcast(Message{
		Event: EventReservationCreate,
		Data:  reservation,
	})
}

// BroadcastReservationUpdate -> a reservation changed status
func BroadcastReservationUpdate(reservation models.Reservation) {
	broadcast(Message{
		Event: EventReservationUpdate,
		Data:  reservation,
	})
}

// BroadcastReservationDelete -> a reservation was removed
func BroadcastReservationDelete(reservation models.Reservation) {
	broadcast(Message{
		Event: EventReservationDelete,
		Data: map[string]interface{}{
			"id": reservation.ID,
		},
	})
}

// BroadcastTableCreate -> a new table was added to the floor
func BroadcastTableCreate(table models.Table) {
	broadcast(Message{
		Event: EventTableCreate,
		Data:  table,
	})
}

// BroadcastTableUpdate -> a table changed status
func BroadcastTableUpdate(table models.Table) {
	broadcast(Message{
		Event: EventTableUpdate,
		Data:  table,
	})
}

// BroadcastTableDelete -> a table was removed
func BroadcastTableDelete(table models.Table) {
	broadcast(Message{
		Event: EventTableDelete,
		Data: map[string]interface{}{
			"id": table.ID,
		},
	})
}

// BroadcastWaitlistUpdate -> a waitlist entry changed status
func BroadcastWaitlistUpdate(entry models.WaitlistEntry) {
	broadcast(Message{
		Event: EventWaitlistUpdate,
		Data:  entry,
	})
}

// broadcast -> internal fan-out to all connected displays
func broadcast(msg Message) {
	floorHub.mutex.Lock()
	defer floorHub.mutex.Unlock()

	if len(floorHub.clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	for conn := range floorHub.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Error sending message to floor client: %v", err)
			continue
		}
	}
}
