package websocket

type Room struct {
	Id      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
}

// RoomEnvelope is a pre-marshaled wire.Envelope addressed to one room. The
// payload is forwarded to every joined client verbatim, whether it
// originated on this node or arrived through the Redis bridge.
type RoomEnvelope struct {
	RoomID  string
	Payload []byte
}

// RoomChange asks the hub to add or remove a client from a room.
type RoomChange struct {
	Client *WSClient
	RoomID string
}

type RoomRes struct {
	ID string `json:"id"`
}
