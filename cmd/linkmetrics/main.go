package main

import (
	"log"

	"github.com/MrSnakeDoc/linkmetrics/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ linkmetrics failed to start: %v", err)
	}
}
