package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neurodeck/mindlink/internal/config"
	"github.com/neurodeck/mindlink/internal/eeg"
	"github.com/neurodeck/mindlink/internal/shm"
)

// RunWatch attaches to the producer's shared memory segment and prints
// a snapshot line every interval, the way a game client would poll it.
// When save names an event, one save command is sent first: a history
// record by default, a training sample when training is true.
func RunWatch(interval time.Duration, save string, training bool) error {
	cfg := config.Get()

	client, err := shm.OpenClient(cfg.SegmentName)
	if err != nil {
		return err
	}
	defer client.Close()
	log.Printf("watch: attached to segment %q", cfg.SegmentName)

	if save != "" {
		event := eeg.Event(save)
		if !event.Valid() {
			return fmt.Errorf("watch: unknown event %q", save)
		}
		cmdType := shm.CommandSaveHistory
		if training {
			cmdType = shm.CommandSaveTraining
		}
		if client.CommandPending() {
			return fmt.Errorf("watch: a command is already pending, not overwriting it")
		}
		if err := client.SendCommand(cmdType, event, int32(time.Now().Unix())); err != nil {
			return err
		}
		log.Printf("watch: sent save command type=%d event=%q", cmdType, string(event))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sig:
			log.Println("watch: shutting down")
			return nil

		case <-ticker.C:
			snap := client.Read()

			fmt.Printf(
				"ts=%d att=%3d med=%3d sig=%3d event=%-4s gyro=(%d,%d,%d)",
				snap.Timestamp,
				snap.Sample.Attention, snap.Sample.Meditation, snap.Sample.Signal,
				string(snap.Event),
				snap.Gyro.X, snap.Gyro.Y, snap.Gyro.Z,
			)
			if snap.MLConfidence > 0 {
				fmt.Printf(" ml=%d/1000", snap.MLConfidence)
			}
			if client.CommandPending() {
				fmt.Printf(" [command pending]")
			}
			fmt.Println()
		}
	}
}
