package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/neurodeck/mindlink/internal/config"
	"github.com/neurodeck/mindlink/internal/eeg"
)

// RunConsole subscribes to the telemetry mirror topics and prints one
// formatted line per message.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	eegToken := client.Subscribe(cfg.TopicEEG, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s eeg.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: sample unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[EEG]   att=%3d med=%3d sig=%3d  d=%8d t=%8d  la=%7d ha=%7d  lb=%7d hb=%7d  lg=%7d hg=%7d\n",
			s.Attention, s.Meditation, s.Signal,
			s.Delta, s.Theta,
			s.LowAlpha, s.HighAlpha,
			s.LowBeta, s.HighBeta,
			s.LowGamma, s.HighGamma,
		)
	})
	eegToken.Wait()
	if eegToken.Error() != nil {
		return eegToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicEEG)

	eventToken := client.Subscribe(cfg.TopicEvent, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev eventMessage
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: event unmarshal error: %v", err)
			return
		}
		if ev.Event == "" {
			return
		}

		fmt.Printf("[EVENT] %-4s code=%d confidence=%.2f\n", ev.Event, ev.Code, ev.Confidence)
	})
	eventToken.Wait()
	if eventToken.Error() != nil {
		return eventToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicEvent)

	gyroToken := client.Subscribe(cfg.TopicGyro, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var g eeg.Gyro
		if err := json.Unmarshal(msg.Payload(), &g); err != nil {
			log.Printf("console: gyro unmarshal error: %v", err)
			return
		}

		fmt.Printf("[GYRO]  x=%6d y=%6d z=%6d\n", g.X, g.Y, g.Z)
	})
	gyroToken.Wait()
	if gyroToken.Error() != nil {
		return gyroToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGyro)

	extendToken := client.Subscribe(cfg.TopicExtend, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var e eeg.Extend
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("console: extend unmarshal error: %v", err)
			return
		}

		fmt.Printf("[EXT]   ap=%d battery=%d temp=%d heart=%d\n", e.AP, e.Electric, e.Temp, e.Heart)
	})
	extendToken.Wait()
	if extendToken.Error() != nil {
		return extendToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicExtend)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("console: shutting down")
	return nil
}
