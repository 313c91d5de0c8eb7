package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"automate-chat/internal/env"
	"automate-chat/internal/presence"
	"automate-chat/internal/service/chat"
	"automate-chat/internal/wire"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	upgrader    websocket.Upgrader
	redisClient *redis.Client
)

func init() {
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get(env.ChatRedisURL),
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	})
}

// roomChannel names the Redis pub/sub channel bridging a room across nodes.
func roomChannel(roomID string) string {
	return "room:" + roomID
}

type Handler struct {
	hub         *Hub
	svc         *chat.Service
	registry    *presence.Registry
	redisClient *redis.Client

	subMu      sync.Mutex
	subscribed map[string]struct{}
}

func NewHandler(h *Hub, svc *chat.Service) *Handler {
	return &Handler{
		hub:         h,
		svc:         svc,
		registry:    presence.NewRegistry(redisClient),
		redisClient: redisClient,
		subscribed:  make(map[string]struct{}),
	}
}

// Serve upgrades the request and runs the client goroutines. One socket per
// session; room membership is driven by joinRoom/leaveRoom events afterwards.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, participantID, role string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cl := &WSClient{
		Conn:          conn,
		Message:       make(chan []byte, 16),
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Role:          role,
		limiter:       rate.NewLimiter(rate.Limit(20), 40),
		done:          make(chan struct{}),
		isClosed:      false,
		rooms:         make(map[string]struct{}),
	}

	if _, err := h.registry.Connect(r.Context(), participantID); err != nil {
		log.Printf("ws: presence connect for %s: %v", participantID, err)
	}

	h.hub.Register <- cl

	go cl.keepAlive(func(id string) {
		if err := h.registry.Touch(context.Background(), id); err != nil {
			log.Printf("ws: presence touch for %s: %v", id, err)
		}
	})
	go cl.writeMessage()
	go cl.readMessage(h)
}

func (h *Handler) handleEvent(cl *WSClient, envelope wire.Envelope) {
	switch envelope.Event {
	case wire.EventJoinRoom:
		var req wire.JoinRoom
		if err := json.Unmarshal(envelope.Data, &req); err != nil || req.RoomID == "" {
			log.Printf("ws: bad joinRoom payload from %s", cl.ParticipantID)
			return
		}
		if err := h.requireMember(cl, req.RoomID); err != nil {
			log.Printf("ws: join %s rejected for %s: %v", req.RoomID, cl.ParticipantID, err)
			return
		}
		h.ensureSubscription(req.RoomID)
		h.hub.Join <- &RoomChange{Client: cl, RoomID: req.RoomID}
		h.publishPresence(req.RoomID, cl.ParticipantID, true)

	case wire.EventLeaveRoom:
		var req wire.LeaveRoom
		if err := json.Unmarshal(envelope.Data, &req); err != nil || req.RoomID == "" {
			log.Printf("ws: bad leaveRoom payload from %s", cl.ParticipantID)
			return
		}
		h.hub.Leave <- &RoomChange{Client: cl, RoomID: req.RoomID}

	case wire.EventCheckOnline:
		var req wire.CheckOnline
		if err := json.Unmarshal(envelope.Data, &req); err != nil || req.ParticipantID == "" {
			log.Printf("ws: bad checkOnlineStatus payload from %s", cl.ParticipantID)
			return
		}
		online, err := h.registry.IsOnline(context.Background(), req.ParticipantID)
		if err != nil {
			log.Printf("ws: presence lookup %s: %v", req.ParticipantID, err)
			return
		}
		h.sendToClient(cl, wire.EventOnlineStatus, wire.PresenceEvent{
			ID:     req.ParticipantID,
			Online: online,
		})

	case wire.EventSendMessage:
		var req wire.SendMessage
		if err := json.Unmarshal(envelope.Data, &req); err != nil || req.RoomID == "" {
			log.Printf("ws: bad sendMessage payload from %s", cl.ParticipantID)
			return
		}
		h.handleSendMessage(cl, req)

	default:
		log.Printf("ws: unknown event %q from %s", envelope.Event, cl.ParticipantID)
	}
}

// requireMember gates room joins and sends on conversation membership, the
// same invariant the REST surface enforces.
func (h *Handler) requireMember(cl *WSClient, roomID string) error {
	return h.svc.RequireMember(context.Background(), chat.Identity{
		ParticipantID: cl.ParticipantID,
		Role:          cl.Role,
	}, roomID)
}

func (h *Handler) handleSendMessage(cl *WSClient, req wire.SendMessage) {
	if err := h.requireMember(cl, req.RoomID); err != nil {
		log.Printf("ws: send to %s rejected for %s: %v", req.RoomID, cl.ParticipantID, err)
		return
	}

	result, err := h.svc.AppendMessage(context.Background(), chat.AppendMessageParams{
		ConversationID: req.RoomID,
		SenderRole:     cl.Role,
		Content:        req.Message.Content,
		ImageURL:       req.Message.ImageURL,
		ClientID:       req.Message.ClientID,
		Timestamp:      req.Message.Timestamp,
	})
	if err != nil {
		log.Printf("ws: append message in %s from %s: %v", req.RoomID, cl.ParticipantID, err)
		return
	}

	envelope, err := wire.NewEnvelope(wire.EventReceiveMessage, chat.WireMessage(result.Message))
	if err != nil {
		log.Printf("ws: marshal receiveMessage envelope: %v", err)
		return
	}
	if err := Publish(req.RoomID, envelope); err != nil {
		log.Printf("ws: publish message to %s: %v", req.RoomID, err)
	}
}

// handleDisconnect runs once per client, from readMessage's defer. The room
// list has to be captured before Unregister clears it.
func (h *Handler) handleDisconnect(cl *WSClient) {
	rooms := cl.roomList()

	h.hub.Unregister <- cl

	nowOffline, err := h.registry.Disconnect(context.Background(), cl.ParticipantID)
	if err != nil {
		log.Printf("ws: presence disconnect for %s: %v", cl.ParticipantID, err)
		return
	}
	if !nowOffline {
		return
	}
	for _, roomID := range rooms {
		h.publishPresence(roomID, cl.ParticipantID, false)
	}
}

func (h *Handler) publishPresence(roomID, participantID string, online bool) {
	envelope, err := wire.NewEnvelope(wire.EventOnlineStatus, wire.PresenceEvent{
		ID:     participantID,
		Online: online,
	})
	if err != nil {
		log.Printf("ws: marshal onlineStatus envelope: %v", err)
		return
	}
	if err := Publish(roomID, envelope); err != nil {
		log.Printf("ws: publish presence for %s to %s: %v", participantID, roomID, err)
	}
}

func (h *Handler) sendToClient(cl *WSClient, event string, payload interface{}) {
	reply, err := wire.NewEnvelope(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s envelope: %v", event, err)
		return
	}
	envelope, err := json.Marshal(reply)
	if err != nil {
		log.Printf("ws: marshal %s envelope: %v", event, err)
		return
	}
	select {
	case cl.Message <- envelope:
	case <-time.After(time.Second):
		log.Printf("ws: dropping %s reply to slow client %s", event, cl.ID)
	}
}

// ensureSubscription starts the Redis bridge for a room exactly once per
// process. The subscription lives for the life of the process; rooms come and
// go cheaply on the hub side.
func (h *Handler) ensureSubscription(roomID string) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if _, ok := h.subscribed[roomID]; ok {
		return
	}
	h.subscribed[roomID] = struct{}{}
	go h.subscribeToRoomChannel(roomID)
}

func (h *Handler) subscribeToRoomChannel(roomID string) {
	log.Printf("ws: subscribing to Redis channel %s", roomChannel(roomID))
	subscriber := h.redisClient.Subscribe(context.Background(), roomChannel(roomID))
	defer subscriber.Close()

	ch := subscriber.Channel()
	for msg := range ch {
		h.hub.Broadcast <- &RoomEnvelope{
			RoomID:  roomID,
			Payload: []byte(msg.Payload),
		}
	}
	log.Printf("ws: unsubscribed from Redis channel %s", roomChannel(roomID))

	h.subMu.Lock()
	delete(h.subscribed, roomID)
	h.subMu.Unlock()
}
