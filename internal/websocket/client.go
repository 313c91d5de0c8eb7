package websocket

import (
	"log"
	"sync"
	"time"

	"automate-chat/internal/wire"
	"encoding/json"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type WSClient struct {
	Conn          *websocket.Conn
	Message       chan []byte
	ID            string
	ParticipantID string
	Role          string

	limiter  *rate.Limiter
	done     chan struct{} // Signal for coordinating goroutine shutdown
	mu       sync.Mutex    // Mutex for connection access
	isClosed bool          // Flag to track connection state

	roomMu sync.Mutex
	rooms  map[string]struct{}
}

func (cl *WSClient) addRoom(roomID string) {
	cl.roomMu.Lock()
	defer cl.roomMu.Unlock()
	cl.rooms[roomID] = struct{}{}
}

func (cl *WSClient) removeRoom(roomID string) {
	cl.roomMu.Lock()
	defer cl.roomMu.Unlock()
	delete(cl.rooms, roomID)
}

func (cl *WSClient) roomList() []string {
	cl.roomMu.Lock()
	defer cl.roomMu.Unlock()
	out := make([]string, 0, len(cl.rooms))
	for roomID := range cl.rooms {
		out = append(out, roomID)
	}
	return out
}

// closeMessageChan reports whether this call was the one that closed the
// channel, so the caller can tie connection accounting to the first close.
func (cl *WSClient) closeMessageChan() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.isClosed {
		return false
	}
	cl.isClosed = true
	close(cl.Message)
	return true
}

func (cl *WSClient) keepAlive(touch func(participantID string)) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("ws: ping error for client %s: %v", cl.ID, err)
				return
			}
			if touch != nil {
				touch(cl.ParticipantID)
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer func() {
		cl.mu.Lock()
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case payload, ok := <-cl.Message:
			if !ok {
				return
			}

			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteMessage(websocket.TextMessage, payload)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("ws: error sending to client %s: %v", cl.ID, err)
				return
			}
		}
	}
}

func (cl *WSClient) readMessage(h *Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ws: recovered from panic in readMessage: %v", r)
		}

		if cl.done != nil {
			close(cl.done)
		}

		h.handleDisconnect(cl)
		log.Printf("ws: client %s (%s) disconnected", cl.ID, cl.ParticipantID)
	}()

	cl.Conn.SetReadLimit(512 * 1024) // Set a reasonable read limit

	for {
		_, payload, err := cl.Conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				if closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived {
					break
				}
			}
			log.Printf("ws: error reading from client %s: %v", cl.ID, err)
			break
		}

		if !cl.limiter.Allow() {
			log.Printf("ws: client %s exceeded event rate, dropping event", cl.ID)
			continue
		}

		var envelope wire.Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			log.Printf("ws: malformed envelope from client %s: %v", cl.ID, err)
			continue
		}

		h.handleEvent(cl, envelope)
	}
}
