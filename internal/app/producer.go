package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/neurodeck/mindlink/internal/classifier"
	"github.com/neurodeck/mindlink/internal/config"
	"github.com/neurodeck/mindlink/internal/device"
	"github.com/neurodeck/mindlink/internal/eeg"
	"github.com/neurodeck/mindlink/internal/history"
	"github.com/neurodeck/mindlink/internal/protocol"
	"github.com/neurodeck/mindlink/internal/shm"
)

// eventMessage is the MQTT payload published per classified sample.
type eventMessage struct {
	Event      string  `json:"event"`
	Code       int32   `json:"code"`
	Confidence float64 `json:"confidence,omitempty"`
}

// RunProducer runs the headset pipeline: device bytes are parsed into
// samples, each sample is classified by the tolerance matcher (with
// the trained classifier as fallback), and the result is written to
// the shared memory channel and mirrored to MQTT. Consumer commands
// arriving through the channel append to the history or training logs.
func RunProducer() error {
	log.Println("starting mindlink headset producer")

	cfg := config.Get()

	// --- Tolerance cascade ---
	profiles, err := config.LoadProfiles(cfg.ProfilePath)
	if err != nil {
		return err
	}
	cascade := profiles.Cascade()
	log.Printf("tolerance cascade loaded: %d levels", len(cascade))

	// --- History and training data ---
	histLog := history.NewLog()
	if err := histLog.Load(cfg.HistoryPath); err != nil {
		log.Printf("history load error: %v", err)
	}

	trainingSet := classifier.NewTrainingSet()
	if err := trainingSet.Load(cfg.TrainingDataPath); err != nil {
		log.Printf("training data load error: %v", err)
	}

	// --- Classifier and background trainer ---
	model := classifier.NewNearestCentroid(classifier.DefaultWeights)
	trainer := classifier.NewTrainer(model, time.Duration(cfg.TrainTimeoutSeconds)*time.Second, 1)
	defer trainer.Close()

	if cfg.ClassifierEnabled {
		if ok, reason := trainingSet.CanTrain(cfg.ClassifierMinSamples); ok {
			if _, err := trainer.Submit(trainingSet.Samples()); err != nil {
				log.Printf("initial training submit error: %v", err)
			}
		} else {
			log.Printf("classifier idle: %s", reason)
		}
	}

	// --- Shared memory channel ---
	channel := shm.NewChannel(cfg.SegmentName)
	if err := channel.Start(); err != nil {
		return err
	}
	defer channel.Stop()

	// --- MQTT mirror ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// Extended device data arrives from the SDK bridge as loosely
	// typed JSON; forward it into the segment and mirror it outward.
	extToken := client.Subscribe(cfg.TopicExtendIn, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var values map[string]any
		if err := json.Unmarshal(msg.Payload(), &values); err != nil {
			log.Printf("extend payload unmarshal error: %v", err)
			return
		}
		channel.WriteExtendMap(values)
		client.Publish(cfg.TopicExtend, 0, true, msg.Payload())
	})
	extToken.Wait()
	if extToken.Error() != nil {
		return extToken.Error()
	}

	// --- Headset byte source ---
	var src device.Source
	if cfg.UseSimulator {
		log.Println("using device simulator")
		src = device.NewSimulator(0)
	} else {
		src, err = device.OpenSerial(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return err
		}
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Latest decoded sample, shared with the command handler.
	var (
		latestMu  sync.Mutex
		latest    eeg.Sample
		hasLatest bool
	)

	// --- Command servicing ---
	handleCommand := func(cmd shm.Command) {
		latestMu.Lock()
		sample, ok := latest, hasLatest
		latestMu.Unlock()
		if !ok {
			log.Printf("command %d for %q ignored: no sample seen yet", cmd.Type, string(cmd.Event))
			return
		}

		switch cmd.Type {
		case shm.CommandSaveHistory:
			histLog.Add(history.Record{Sample: sample, EventName: cmd.Event})
			log.Printf("command: saved sample to history as %q (%d records)", string(cmd.Event), histLog.Count())
		case shm.CommandSaveTraining:
			trainingSet.Add(classifier.TrainingSample{Sample: sample, Event: cmd.Event})
			log.Printf("command: saved sample for training as %q (%d samples)", string(cmd.Event), trainingSet.Count())
			if cfg.ClassifierEnabled {
				if ok, _ := trainingSet.CanTrain(cfg.ClassifierMinSamples); ok {
					if _, err := trainer.Submit(trainingSet.Samples()); err != nil && !errors.Is(err, classifier.ErrTrainerBusy) {
						log.Printf("training submit error: %v", err)
					}
				}
			}
		}
	}

	pollInterval := time.Duration(cfg.CommandPollIntervalMS) * time.Millisecond
	go channel.RunCommandPoller(ctx, pollInterval, handleCommand)

	// Log training completions.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res := <-trainer.Results():
				if res.Err != nil {
					log.Printf("training job %s failed: %v", res.JobID, res.Err)
				} else {
					log.Printf("training job %s completed in %s", res.JobID, res.Took)
				}
			}
		}
	}()

	// --- Transport reader ---
	// Runs on its own goroutine so a slow consumer never blocks the
	// transport; decoded samples are handed over a buffered channel
	// and dropped (with a log line) if the consumer falls behind.
	samples := make(chan eeg.Sample, 16)
	gyros := make(chan eeg.Gyro, 16)

	go func() {
		parser := protocol.NewParser()
		buf := make([]byte, 512)
		for {
			n, err := src.Read(buf)
			if err != nil {
				log.Printf("device read error: %v", err)
				cancel()
				return
			}
			sample, gyro := parser.Feed(buf[:n])
			if sample != nil {
				select {
				case samples <- *sample:
				default:
					log.Println("sample dropped: consumer behind")
				}
			}
			if gyro != nil {
				select {
				case gyros <- *gyro:
				default:
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	shutdown := func() {
		if err := histLog.Save(cfg.HistoryPath); err != nil {
			log.Printf("history save error: %v", err)
		}
		if err := trainingSet.Save(cfg.TrainingDataPath); err != nil {
			log.Printf("training data save error: %v", err)
		}
	}

	// --- Consumer loop ---
	// Single goroutine: samples are classified and published in
	// device-arrival order.
	for {
		select {
		case <-sig:
			log.Println("shutting down")
			shutdown()
			return nil

		case <-ctx.Done():
			shutdown()
			return nil

		case gyro := <-gyros:
			channel.WriteGyro(gyro)
			if payload, err := json.Marshal(gyro); err != nil {
				log.Printf("gyro marshal error: %v", err)
			} else {
				client.Publish(cfg.TopicGyro, 0, true, payload)
			}

		case sample := <-samples:
			latestMu.Lock()
			latest = sample
			hasLatest = true
			latestMu.Unlock()

			event := histLog.EventFor(sample, cascade)

			var ml *shm.MLReport
			var confidence float64
			if cfg.ClassifierEnabled {
				pred, err := model.Predict(classifier.Features(sample, classifier.DefaultWeights))
				switch {
				case err == nil:
					ml = &shm.MLReport{Confidence: pred.Confidence, Probabilities: pred.Probabilities}
					confidence = pred.Confidence
					if event == eeg.EventNone && pred.Confidence >= cfg.ClassifierConfidenceMin {
						event = pred.Event
					}
				case errors.Is(err, classifier.ErrNotTrained):
					// No model yet; matcher result stands.
				default:
					log.Printf("predict error: %v", err)
				}
			}

			channel.WriteTelemetry(sample, event, ml)

			if payload, err := json.Marshal(sample); err != nil {
				log.Printf("sample marshal error: %v", err)
			} else {
				client.Publish(cfg.TopicEEG, 0, true, payload)
			}

			msg := eventMessage{Event: string(event), Code: event.Code(), Confidence: confidence}
			if payload, err := json.Marshal(msg); err != nil {
				log.Printf("event marshal error: %v", err)
			} else {
				client.Publish(cfg.TopicEvent, 0, true, payload)
			}
		}
	}
}
