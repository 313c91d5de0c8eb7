package websocket

import (
	"testing"
	"time"
)

func TestSlowConsumerDroppedFromAllRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &WSClient{
		Message: make(chan []byte),
		ID:      "slow",
		rooms:   make(map[string]struct{}),
	}
	healthy := &WSClient{
		Message: make(chan []byte, 4),
		ID:      "healthy",
		rooms:   make(map[string]struct{}),
	}

	hub.Register <- slow
	hub.Register <- healthy
	hub.Join <- &RoomChange{Client: slow, RoomID: "room-a"}
	hub.Join <- &RoomChange{Client: slow, RoomID: "room-b"}
	hub.Join <- &RoomChange{Client: healthy, RoomID: "room-b"}

	// Nothing reads slow.Message, so this broadcast drops the client.
	hub.Broadcast <- &RoomEnvelope{RoomID: "room-a", Payload: []byte("first")}

	select {
	case hub.Broadcast <- &RoomEnvelope{RoomID: "room-b", Payload: []byte("second")}:
	case <-time.After(time.Second):
		t.Fatal("hub stopped accepting broadcasts after dropping a slow consumer")
	}

	select {
	case payload := <-healthy.Message:
		if string(payload) != "second" {
			t.Fatalf("payload = %q, want %q", payload, "second")
		}
	case <-time.After(time.Second):
		t.Fatal("remaining client never received the room-b broadcast")
	}

	if rooms := slow.roomList(); len(rooms) != 0 {
		t.Fatalf("dropped client still joined to %v", rooms)
	}
}

func TestCloseMessageChanClosesOnce(t *testing.T) {
	cl := &WSClient{Message: make(chan []byte, 1)}

	if !cl.closeMessageChan() {
		t.Fatal("first close must report the channel as newly closed")
	}
	if cl.closeMessageChan() {
		t.Fatal("second close must be a no-op")
	}
}
