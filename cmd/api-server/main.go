package main

import (
	"log"

	"automate-chat/internal/api"
	"automate-chat/internal/api/router"
	"automate-chat/internal/database"
	"automate-chat/internal/queue"
)

func main() {
	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	server := api.NewAPIServer(
		":82",
		queueManager,
		db,
		nil,
		router.UtilsRoutes("/api/v1"),
		router.ChatRoutes("/api/v1"),
		router.UploadRoutes("/api/v1"),
	)

	server.Run()
}
