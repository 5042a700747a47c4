package main

import (
	"flag"
	"log"
	"time"

	"github.com/neurodeck/mindlink/internal/app"
	"github.com/neurodeck/mindlink/internal/config"
)

func main() {
	configPath := flag.String("config", "./mindlink_config.txt", "path to configuration file")
	interval := flag.Duration("interval", 500*time.Millisecond, "snapshot print interval")
	save := flag.String("save", "", "send one save command for this event (ml, mr, mu, md, stop)")
	training := flag.Bool("training", false, "save as a training sample instead of a history record")
	flag.Parse()

	log.Println("starting mindlink shared memory watcher")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunWatch(*interval, *save, *training); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
