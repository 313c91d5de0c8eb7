package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"automate-chat/internal/wire"

	"github.com/gorilla/websocket"
)

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
)

type ConnConfig struct {
	URL           string
	ParticipantID string
	Token         string

	OnMessage     func(wire.Message)
	OnPresence    func(wire.PresenceEvent)
	OnRead        func(wire.ReadEvent)
	OnStateChange func(ConnState)

	// Backoff knobs for the reconnect loop. Zero values select the defaults
	// (500ms doubling to a 30s cap, 20% jitter, retrying until Close).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Logger *log.Logger
}

// Conn owns the one persistent channel of an application session. It tracks
// the set of joined rooms so a reconnect can re-subscribe them without the
// user reselecting anything.
type Conn struct {
	cfg    ConnConfig
	logger *log.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	state  ConnState
	rooms  map[string]struct{}
	closed chan struct{}
	once   sync.Once
}

func NewConn(cfg ConnConfig) *Conn {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Conn{
		cfg:    cfg,
		logger: logger,
		state:  StateDisconnected,
		rooms:  make(map[string]struct{}),
		closed: make(chan struct{}),
	}
}

// Connect dials the channel once per session. Transport loss after a
// successful connect is recovered internally; a failed first dial is the
// caller's to handle.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("chatclient: connect called in state %s", state)
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	ws, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("chatclient: connect: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.state = StateConnected
	c.mu.Unlock()
	c.notifyState(StateConnected)

	go c.readLoop(ws)
	return nil
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
	return ws, err
}

// JoinRoom subscribes the session to a conversation's event stream. The room
// is remembered even when the channel is down so the reconnect path can
// replay the subscription.
func (c *Conn) JoinRoom(roomID string) error {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.emit(wire.EventJoinRoom, wire.JoinRoom{
		RoomID:        roomID,
		ParticipantID: c.cfg.ParticipantID,
	})
}

// LeaveRoom unsubscribes from a room, bounding server-side subscription
// growth when the user switches conversations.
func (c *Conn) LeaveRoom(roomID string) error {
	c.mu.Lock()
	delete(c.rooms, roomID)
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.emit(wire.EventLeaveRoom, wire.LeaveRoom{
		RoomID:        roomID,
		ParticipantID: c.cfg.ParticipantID,
	})
}

func (c *Conn) RequestPresence(participantID string) error {
	return c.emit(wire.EventCheckOnline, wire.CheckOnline{ParticipantID: participantID})
}

func (c *Conn) Send(roomID string, message wire.Message) error {
	return c.emit(wire.EventSendMessage, wire.SendMessage{RoomID: roomID, Message: message})
}

func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		out = append(out, roomID)
	}
	return out
}

// Close ends the session channel for good. Terminal: no reconnects after.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.closed)
	})

	c.mu.Lock()
	c.state = StateClosed
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	c.notifyState(StateClosed)

	if ws != nil {
		ws.Close()
	}
}

func (c *Conn) emit(event string, payload interface{}) error {
	envelope, err := wire.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("chatclient: marshal %s: %w", event, err)
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("chatclient: marshal %s envelope: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.ws == nil {
		return fmt.Errorf("chatclient: emit %s: channel %s", event, c.state)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("chatclient: emit %s: %w", event, err)
	}
	return nil
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			break
		}
		c.dispatch(payload)
	}
	ws.Close()

	select {
	case <-c.closed:
		return
	default:
	}

	c.logger.Printf("chatclient: channel lost, reconnecting")
	c.reconnect()
}

func (c *Conn) dispatch(payload []byte) {
	var envelope wire.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		c.logger.Printf("chatclient: malformed envelope: %v", err)
		return
	}

	switch envelope.Event {
	case wire.EventReceiveMessage:
		var msg wire.Message
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			c.logger.Printf("chatclient: malformed receiveMessage: %v", err)
			return
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(msg)
		}

	case wire.EventOnlineStatus:
		var ev wire.PresenceEvent
		if err := json.Unmarshal(envelope.Data, &ev); err != nil {
			c.logger.Printf("chatclient: malformed onlineStatus: %v", err)
			return
		}
		if c.cfg.OnPresence != nil {
			c.cfg.OnPresence(ev)
		}

	case wire.EventMessageRead:
		var ev wire.ReadEvent
		if err := json.Unmarshal(envelope.Data, &ev); err != nil {
			c.logger.Printf("chatclient: malformed messageRead: %v", err)
			return
		}
		if c.cfg.OnRead != nil {
			c.cfg.OnRead(ev)
		}

	default:
		c.logger.Printf("chatclient: unknown event %q", envelope.Event)
	}
}

// reconnect retries indefinitely with exponential backoff until Close. On
// success every remembered room is re-joined before events flow again.
func (c *Conn) reconnect() {
	c.setState(StateReconnecting)

	backoff := c.cfg.InitialBackoff
	for {
		select {
		case <-c.closed:
			return
		case <-time.After(withJitter(backoff)):
		}

		ws, err := c.dial(context.Background())
		if err != nil {
			c.logger.Printf("chatclient: reconnect failed: %v", err)
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
			continue
		}

		c.mu.Lock()
		if c.state == StateClosed {
			c.mu.Unlock()
			ws.Close()
			return
		}
		c.ws = ws
		c.state = StateConnected
		c.mu.Unlock()
		c.notifyState(StateConnected)

		c.rejoinRooms()
		go c.readLoop(ws)
		return
	}
}

func (c *Conn) rejoinRooms() {
	for _, roomID := range c.Rooms() {
		err := c.emit(wire.EventJoinRoom, wire.JoinRoom{
			RoomID:        roomID,
			ParticipantID: c.cfg.ParticipantID,
		})
		if err != nil {
			c.logger.Printf("chatclient: rejoin %s: %v", roomID, err)
		}
	}
}

func (c *Conn) setState(state ConnState) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.notifyState(state)
}

func (c *Conn) notifyState(state ConnState) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(state)
	}
}

// withJitter spreads retries by +-20% so clients that dropped together do
// not dial back together.
func withJitter(d time.Duration) time.Duration {
	factor := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * factor)
}
