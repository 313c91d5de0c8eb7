package websocket

import (
	"context"
	"testing"
	"time"

	"automate-chat/internal/model"
	chatservice "automate-chat/internal/service/chat"
	"automate-chat/internal/wire"
)

type stubRepository struct {
	conversations map[string]model.ConversationItem
	created       []model.MessageItem
}

func (s *stubRepository) GetUser(ctx context.Context, userID string) (model.UserItem, error) {
	return model.UserItem{}, chatservice.ErrNotFound
}

func (s *stubRepository) ListUsersByRole(ctx context.Context, role string) ([]model.UserItem, error) {
	return nil, nil
}

func (s *stubRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	return nil
}

func (s *stubRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	conversation, ok := s.conversations[conversationID]
	if !ok {
		return model.ConversationItem{}, chatservice.ErrNotFound
	}
	return conversation, nil
}

func (s *stubRepository) GetConversationByPair(ctx context.Context, customerID, workshopID string) (model.ConversationItem, error) {
	return model.ConversationItem{}, chatservice.ErrNotFound
}

func (s *stubRepository) ListConversationsByParticipant(ctx context.Context, role, participantID string, limit int) ([]model.ConversationItem, error) {
	return nil, nil
}

func (s *stubRepository) UpdateConversationOnMessage(ctx context.Context, conversationID, senderRole, latestBody, latestImageURL, timestamp string) error {
	return nil
}

func (s *stubRepository) ResetUnread(ctx context.Context, conversationID, role, updatedAt string) error {
	return nil
}

func (s *stubRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	s.created = append(s.created, message)
	return nil
}

func (s *stubRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	return nil, nil
}

func (s *stubRepository) MarkMessagesRead(ctx context.Context, conversationID, senderRole string) ([]string, error) {
	return nil, nil
}

func newChannelTestHandler(t *testing.T) (*Handler, *stubRepository) {
	t.Helper()
	repo := &stubRepository{conversations: map[string]model.ConversationItem{
		"conv-1": {ConversationID: "conv-1", CustomerID: "cust-1", WorkshopID: "shop-1"},
	}}
	hub := NewHub()
	go hub.Run()
	return NewHandler(hub, chatservice.NewWithRepository(repo, nil)), repo
}

func testClient(participantID, role string) *WSClient {
	return &WSClient{
		Message:       make(chan []byte, 4),
		ID:            participantID + "-conn",
		ParticipantID: participantID,
		Role:          role,
		rooms:         make(map[string]struct{}),
	}
}

func mustEnvelope(t *testing.T, event string, payload interface{}) wire.Envelope {
	t.Helper()
	envelope, err := wire.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("build %s envelope: %v", event, err)
	}
	return envelope
}

func TestJoinRoomRejectsNonMember(t *testing.T) {
	h, _ := newChannelTestHandler(t)
	cl := testClient("cust-2", model.RoleCustomer)

	h.handleEvent(cl, mustEnvelope(t, wire.EventJoinRoom, wire.JoinRoom{
		RoomID:        "conv-1",
		ParticipantID: "cust-2",
	}))

	if rooms := cl.roomList(); len(rooms) != 0 {
		t.Fatalf("non-member joined rooms %v", rooms)
	}
}

func TestJoinRoomAdmitsMember(t *testing.T) {
	h, _ := newChannelTestHandler(t)
	cl := testClient("cust-1", model.RoleCustomer)

	h.handleEvent(cl, mustEnvelope(t, wire.EventJoinRoom, wire.JoinRoom{
		RoomID:        "conv-1",
		ParticipantID: "cust-1",
	}))

	h.hub.Broadcast <- &RoomEnvelope{RoomID: "conv-1", Payload: []byte("hello")}

	select {
	case payload := <-cl.Message:
		if string(payload) != "hello" {
			t.Fatalf("payload = %q, want %q", payload, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("member never received the room broadcast after joining")
	}
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	h, repo := newChannelTestHandler(t)
	cl := testClient("cust-2", model.RoleCustomer)

	h.handleEvent(cl, mustEnvelope(t, wire.EventSendMessage, wire.SendMessage{
		RoomID:  "conv-1",
		Message: wire.Message{Content: "let me in"},
	}))

	if len(repo.created) != 0 {
		t.Fatalf("non-member message was persisted: %+v", repo.created)
	}
}

func TestSendMessagePersistsForMember(t *testing.T) {
	h, repo := newChannelTestHandler(t)
	cl := testClient("shop-1", model.RoleWorkshop)

	h.handleEvent(cl, mustEnvelope(t, wire.EventSendMessage, wire.SendMessage{
		RoomID:  "conv-1",
		Message: wire.Message{Content: "your brakes are ready"},
	}))

	if len(repo.created) != 1 {
		t.Fatalf("stored %d messages, want 1", len(repo.created))
	}
	if repo.created[0].SenderRole != model.RoleWorkshop {
		t.Errorf("sender role = %q, want %q", repo.created[0].SenderRole, model.RoleWorkshop)
	}
}
