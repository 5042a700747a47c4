package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/neurodeck/mindlink/internal/config"
	"github.com/neurodeck/mindlink/internal/eeg"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// telemetryView is the JSON shape served to the browser.
type telemetryView struct {
	Sample eeg.Sample   `json:"sample"`
	Event  eventMessage `json:"event"`
	Gyro   eeg.Gyro     `json:"gyro"`
	Extend eeg.Extend   `json:"extend"`
}

// RunWeb serves a live telemetry monitor: a JSON snapshot endpoint, a
// websocket stream that pushes every update, and static files from
// ./web. Data comes from the MQTT mirror, not from the shared segment,
// so the monitor can run on another host.
func RunWeb() error {
	cfg := config.Get()

	var (
		mu      sync.RWMutex
		view    telemetryView
		haveEEG bool

		subsMu sync.Mutex
		subs   = make(map[*websocket.Conn]chan telemetryView)
	)

	broadcast := func() {
		mu.RLock()
		snapshot := view
		mu.RUnlock()

		subsMu.Lock()
		for _, ch := range subs {
			select {
			case ch <- snapshot:
			default:
				// Slow browser; it will catch up on the next update.
			}
		}
		subsMu.Unlock()
	}

	// 1) Connect to the MQTT mirror.
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	subscribe := func(topic string, apply func(payload []byte) error) error {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := apply(msg.Payload()); err != nil {
				log.Printf("web: %s unmarshal error: %v", topic, err)
				return
			}
			broadcast()
		})
		token.Wait()
		return token.Error()
	}

	if err := subscribe(cfg.TopicEEG, func(payload []byte) error {
		var s eeg.Sample
		if err := json.Unmarshal(payload, &s); err != nil {
			return err
		}
		mu.Lock()
		view.Sample = s
		haveEEG = true
		mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicEvent, func(payload []byte) error {
		var ev eventMessage
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		mu.Lock()
		view.Event = ev
		mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicGyro, func(payload []byte) error {
		var g eeg.Gyro
		if err := json.Unmarshal(payload, &g); err != nil {
			return err
		}
		mu.Lock()
		view.Gyro = g
		mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicExtend, func(payload []byte) error {
		var e eeg.Extend
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		mu.Lock()
		view.Extend = e
		mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	// 2) JSON API endpoint: latest telemetry.
	http.HandleFunc("/api/telemetry", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveEEG {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 3) Websocket stream: one message per telemetry update.
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}

		ch := make(chan telemetryView, 8)
		subsMu.Lock()
		subs[conn] = ch
		subsMu.Unlock()
		log.Printf("web: websocket client connected: %s", r.RemoteAddr)

		defer func() {
			subsMu.Lock()
			delete(subs, conn)
			subsMu.Unlock()
			conn.Close()
		}()

		for snapshot := range ch {
			if err := conn.WriteJSON(snapshot); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	})

	// 4) Static files from ./web as the root.
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
