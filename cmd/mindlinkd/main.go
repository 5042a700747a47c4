package main

import (
	"flag"
	"log"

	"github.com/neurodeck/mindlink/internal/app"
	"github.com/neurodeck/mindlink/internal/config"
)

func main() {
	configPath := flag.String("config", "./mindlink_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting mindlink headset producer (device → shared memory + MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
