package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"automate-chat/internal/dto"
	"automate-chat/internal/wire"
)

type recordedEvent struct {
	event string
	data  json.RawMessage
}

func newRecordingChannelServer(t *testing.T) (*httptest.Server, chan recordedEvent) {
	t.Helper()
	events := make(chan recordedEvent, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var envelope wire.Envelope
			if err := json.Unmarshal(payload, &envelope); err != nil {
				continue
			}
			events <- recordedEvent{event: envelope.Event, data: envelope.Data}
		}
	}))
	return srv, events
}

func nextEvent(t *testing.T, events chan recordedEvent) recordedEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("expected channel event never arrived")
		return recordedEvent{}
	}
}

func TestSelectConversationFlowAndRoomSwitch(t *testing.T) {
	srv, events := newRecordingChannelServer(t)
	defer srv.Close()

	rest := &fakeRest{
		conversations: []dto.Conversation{
			{ConversationID: "conv-a", CustomerID: "cust-1", WorkshopID: "shop-1", UnreadCount: 0},
			{ConversationID: "conv-b", CustomerID: "cust-1", WorkshopID: "shop-2", UnreadCount: 0},
		},
		messages: map[string][]wire.Message{
			"conv-a": {msg("a1", "conv-a", "workshop", "welcome", "t1")},
			"conv-b": {},
		},
	}

	session, err := NewSession(SessionConfig{
		ChannelURL:    wsURL(srv),
		ParticipantID: "cust-1",
		Role:          "customer",
		Rest:          rest,
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	convA := rest.conversations[0]
	if err := session.SelectConversation(context.Background(), convA); err != nil {
		t.Fatalf("SelectConversation(A): %v", err)
	}

	if ev := nextEvent(t, events); ev.event != wire.EventJoinRoom {
		t.Fatalf("first event = %q, want joinRoom", ev.event)
	}
	if ev := nextEvent(t, events); ev.event != wire.EventCheckOnline {
		t.Fatalf("second event = %q, want checkOnlineStatus", ev.event)
	} else {
		var check wire.CheckOnline
		json.Unmarshal(ev.data, &check)
		if check.ParticipantID != "shop-1" {
			t.Errorf("presence requested for %q, want shop-1", check.ParticipantID)
		}
	}

	if got := messageIDs(session.Store().Messages()); !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("timeline after select = %v", got)
	}
	if session.Presence().CounterpartID() != "shop-1" {
		t.Errorf("tracked counterpart = %q", session.Presence().CounterpartID())
	}

	convB := rest.conversations[1]
	if err := session.SelectConversation(context.Background(), convB); err != nil {
		t.Fatalf("SelectConversation(B): %v", err)
	}

	if ev := nextEvent(t, events); ev.event != wire.EventLeaveRoom {
		t.Fatalf("switch event = %q, want leaveRoom for the prior room", ev.event)
	} else {
		var leave wire.LeaveRoom
		json.Unmarshal(ev.data, &leave)
		if leave.RoomID != "conv-a" {
			t.Errorf("left room %q, want conv-a", leave.RoomID)
		}
	}
	if ev := nextEvent(t, events); ev.event != wire.EventJoinRoom {
		t.Fatalf("switch event = %q, want joinRoom", ev.event)
	}
	if ev := nextEvent(t, events); ev.event != wire.EventCheckOnline {
		t.Fatalf("switch event = %q, want checkOnlineStatus", ev.event)
	}

	if got := len(session.Store().Messages()); got != 0 {
		t.Errorf("conv-a messages leaked into conv-b timeline: %d", got)
	}
	if rooms := session.Conn().Rooms(); !reflect.DeepEqual(rooms, []string{"conv-b"}) {
		t.Errorf("joined rooms = %v, want [conv-b]", rooms)
	}

	wantReads := []string{"conv-a", "conv-b"}
	if !reflect.DeepEqual(rest.markReadCalls, wantReads) {
		t.Errorf("markRead calls = %v, want %v", rest.markReadCalls, wantReads)
	}
}

func TestStartConversationSelectsIt(t *testing.T) {
	srv, events := newRecordingChannelServer(t)
	defer srv.Close()

	rest := &fakeRest{messages: map[string][]wire.Message{"conv-new": {}}}

	session, err := NewSession(SessionConfig{
		ChannelURL:    wsURL(srv),
		ParticipantID: "cust-1",
		Role:          "customer",
		Rest:          rest,
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conversation, err := session.StartConversation(context.Background(), "shop-9")
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if conversation.CustomerID != "cust-1" || conversation.WorkshopID != "shop-9" {
		t.Errorf("pair = %s/%s", conversation.CustomerID, conversation.WorkshopID)
	}

	if ev := nextEvent(t, events); ev.event != wire.EventJoinRoom {
		t.Fatalf("event = %q, want joinRoom for the new conversation", ev.event)
	} else {
		var join wire.JoinRoom
		json.Unmarshal(ev.data, &join)
		if join.RoomID != "conv-new" {
			t.Errorf("joined %q, want conv-new", join.RoomID)
		}
	}

	if selected, ok := session.SelectedConversation(); !ok || selected.ConversationID != "conv-new" {
		t.Error("new conversation should be selected")
	}
}
