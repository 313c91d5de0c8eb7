// Package wire defines the JSON protocol spoken over the persistent chat
// channel. Both the websocket server and the client session engine marshal
// the same envelope, so the two sides cannot drift apart.
package wire

import "encoding/json"

// Channel event names. Join/leave/check/send travel client to server, the
// rest travel server to client.
const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventCheckOnline    = "checkOnlineStatus"
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventOnlineStatus   = "onlineStatus"
	EventMessageRead    = "messageRead"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into an Envelope for the given event.
func NewEnvelope(event string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// Message is the wire shape of a chat message. ID is assigned by the server
// once the message is persisted; ClientID is the sender-generated
// correlation id used to reconcile the echo with the local pending entry.
type Message struct {
	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversationId"`
	ClientID       string `json:"clientId,omitempty"`
	Content        string `json:"content"`
	Sender         string `json:"sender"`
	Timestamp      string `json:"timestamp"`
	Status         string `json:"status"`
	ImageURL       string `json:"imageUrl,omitempty"`
}

type JoinRoom struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
}

type LeaveRoom struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
}

type CheckOnline struct {
	ParticipantID string `json:"participantId"`
}

type SendMessage struct {
	RoomID  string  `json:"roomId"`
	Message Message `json:"message"`
}

type PresenceEvent struct {
	ID     string `json:"id"`
	Online bool   `json:"online"`
}

type ReadEvent struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}
