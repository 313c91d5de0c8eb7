package main

import (
	"log"

	"automate-chat/internal/api"
	"automate-chat/internal/api/router"
	"automate-chat/internal/database"
	"automate-chat/internal/queue"
	chatservice "automate-chat/internal/service/chat"
	"automate-chat/internal/websocket"
)

func main() {
	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub, chatservice.New(db))

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		handler,
		router.UtilsRoutes("/api/ws/v1"),
		router.ChannelRoutes("/api/ws/v1"),
	)

	server.Run()
}
