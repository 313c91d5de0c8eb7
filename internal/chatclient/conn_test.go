package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"automate-chat/internal/wire"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func mustEnvelopeBytes(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	envelope, err := wire.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func TestConnectDispatchesInboundEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.WriteMessage(websocket.TextMessage, mustEnvelopeBytes(t, wire.EventReceiveMessage, wire.Message{
			ID: "m1", ConversationID: "conv-1", Content: "hi", Sender: "workshop",
			Timestamp: "2026-08-01T10:00:00Z", Status: "sent",
		}))
		ws.WriteMessage(websocket.TextMessage, mustEnvelopeBytes(t, wire.EventOnlineStatus, wire.PresenceEvent{
			ID: "shop-1", Online: true,
		}))
		ws.WriteMessage(websocket.TextMessage, mustEnvelopeBytes(t, wire.EventMessageRead, wire.ReadEvent{
			ConversationID: "conv-1", MessageIDs: []string{"m1"},
		}))

		// Hold the socket open until the client hangs up.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	messages := make(chan wire.Message, 1)
	presences := make(chan wire.PresenceEvent, 1)
	reads := make(chan wire.ReadEvent, 1)

	conn := NewConn(ConnConfig{
		URL:           wsURL(srv),
		ParticipantID: "cust-1",
		OnMessage:     func(m wire.Message) { messages <- m },
		OnPresence:    func(ev wire.PresenceEvent) { presences <- ev },
		OnRead:        func(ev wire.ReadEvent) { reads <- ev },
		Logger:        quietLogger(),
	})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	select {
	case m := <-messages:
		if m.ID != "m1" {
			t.Errorf("got message id %q", m.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receiveMessage not dispatched")
	}
	select {
	case ev := <-presences:
		if ev.ID != "shop-1" || !ev.Online {
			t.Errorf("got presence %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onlineStatus not dispatched")
	}
	select {
	case ev := <-reads:
		if ev.ConversationID != "conv-1" {
			t.Errorf("got read event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("messageRead not dispatched")
	}
}

func TestReconnectRejoinsRooms(t *testing.T) {
	var connSeq int32
	joins := make(chan wire.JoinRoom, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := atomic.AddInt32(&connSeq, 1)

		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var envelope wire.Envelope
			if err := json.Unmarshal(payload, &envelope); err != nil {
				continue
			}
			if envelope.Event != wire.EventJoinRoom {
				continue
			}
			var join wire.JoinRoom
			if err := json.Unmarshal(envelope.Data, &join); err != nil {
				continue
			}
			joins <- join
			if n == 1 {
				// Simulate a transport drop right after the first join.
				ws.Close()
				return
			}
		}
	}))
	defer srv.Close()

	conn := NewConn(ConnConfig{
		URL:            wsURL(srv),
		ParticipantID:  "cust-1",
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Logger:         quietLogger(),
	})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.JoinRoom("conv-r"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	select {
	case join := <-joins:
		if join.RoomID != "conv-r" {
			t.Fatalf("first join room = %q", join.RoomID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first join never arrived")
	}

	// The drop happens server-side; the session must re-issue the join on
	// its own, without the user reselecting the conversation.
	select {
	case join := <-joins:
		if join.RoomID != "conv-r" {
			t.Errorf("rejoined room = %q, want conv-r", join.RoomID)
		}
		if join.ParticipantID != "cust-1" {
			t.Errorf("rejoin participant = %q", join.ParticipantID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("room was not rejoined after reconnect")
	}

	if atomic.LoadInt32(&connSeq) < 2 {
		t.Error("expected a second connection after the drop")
	}
}

func TestLeaveRoomDropsFromRejoinSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	conn := NewConn(ConnConfig{URL: wsURL(srv), ParticipantID: "cust-1", Logger: quietLogger()})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	conn.JoinRoom("conv-a")
	conn.JoinRoom("conv-b")
	conn.LeaveRoom("conv-a")

	rooms := conn.Rooms()
	if len(rooms) != 1 || rooms[0] != "conv-b" {
		t.Errorf("rooms = %v, want [conv-b]", rooms)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	conn := NewConn(ConnConfig{
		URL:            wsURL(srv),
		ParticipantID:  "cust-1",
		InitialBackoff: 10 * time.Millisecond,
		Logger:         quietLogger(),
	})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	conn.Close()

	if conn.State() != StateClosed {
		t.Errorf("state = %s, want closed", conn.State())
	}
	if err := conn.Send("conv-1", wire.Message{Content: "late"}); err == nil {
		t.Error("send after close must fail")
	}
	if err := conn.Connect(context.Background()); err == nil {
		t.Error("connect after close must fail")
	}
}
