package websocket

// Hub owns the room membership tables. All mutation happens on the Run
// goroutine, so no locking is needed on Rooms itself; clients guard their
// own room sets for the disconnect path.
type Hub struct {
	Rooms      map[string]*Room
	Register   chan *WSClient
	Unregister chan *WSClient
	Join       chan *RoomChange
	Leave      chan *RoomChange
	Broadcast  chan *RoomEnvelope
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Join:       make(chan *RoomChange),
		Leave:      make(chan *RoomChange),
		Broadcast:  make(chan *RoomEnvelope),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.Register:
			incConnections()

		case client := <-h.Unregister:
			h.dropClient(client)

		case change := <-h.Join:
			room, ok := h.Rooms[change.RoomID]
			if !ok {
				room = &Room{
					Id:      change.RoomID,
					Clients: make(map[string]*WSClient),
				}
				h.Rooms[change.RoomID] = room
				setRooms(len(h.Rooms))
			}
			room.Clients[change.Client.ID] = change.Client
			change.Client.addRoom(change.RoomID)

		case change := <-h.Leave:
			h.removeFromRoom(change.Client, change.RoomID)

		case message := <-h.Broadcast:
			room, ok := h.Rooms[message.RoomID]
			if !ok {
				// No local client joined this room; another node will deliver.
				continue
			}
			delivered := 0
			for _, client := range room.Clients {
				select {
				case client.Message <- message.Payload:
					delivered++
				default:
					// Slow consumer: drop the connection rather than block
					// the hub. Every room the client joined has to go, or a
					// later broadcast would send on the closed channel.
					h.dropClient(client)
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}

// dropClient removes a client from every room and closes its channel. The
// gauge is decremented only on the first close, so a slow-consumer drop
// followed by the socket's own unregister counts the connection once.
func (h *Hub) dropClient(client *WSClient) {
	for _, roomID := range client.roomList() {
		h.removeFromRoom(client, roomID)
	}
	if client.closeMessageChan() {
		decConnections()
	}
}

func (h *Hub) removeFromRoom(client *WSClient, roomID string) {
	room, ok := h.Rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room.Clients[client.ID]; ok {
		delete(room.Clients, client.ID)
		client.removeRoom(roomID)
	}
	if len(room.Clients) == 0 {
		delete(h.Rooms, roomID)
		setRooms(len(h.Rooms))
	}
}
