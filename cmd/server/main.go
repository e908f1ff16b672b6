package main

import (
	approuters "Chatline/internal/app_routers"
	"Chatline/internal/configuration"
	"log"

	"go.uber.org/zap"
)

func main() {
	container, err := configuration.BuildContainer(configuration.ConfigPath())
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer func() {
		if err := container.Close(); err != nil {
			container.Logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	// Setup routers
	approuters.StartServer(container)
}
