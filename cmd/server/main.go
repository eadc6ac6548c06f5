package main

import (
	"log"

	"github.com/pocketlist/pocketlist/internal/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
